// Package cli implements the scatter command-line interface.
//
// The root command is "scatter" with two subcommands:
//
//	scatter run [command]  - Run a command on every inventory host
//	scatter version        - Print version information
//
// # Settings
//
// Every run flag is bound into a viper instance, so each can also come from
// the environment (SCATTER_LIMIT=20, SCATTER_KNOWN_HOSTS=strict) or from a
// settings file (~/.config/scatter/config.yaml, or --config). Flags win over
// the environment, which wins over the file.
//
// # Run phases
//
//  1. Load the inventory and any list/command files (CONFIG errors abort here)
//  2. Resolve targets; with --dry-run print the plan and stop
//  3. Open the sinks (log file, save-dir, progress view or stream printer)
//  4. Schedule every target under --limit and drain the outcome stream
//  5. Print the summary and exit 0 only if every host succeeded
//
// Package-level hooks (filesystem, connector, agent probe, ssh config
// loader, terminal check, password prompt) exist so tests can swap them
// with gostub.
package cli
