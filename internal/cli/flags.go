package cli

import (
	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/rileyhilliard/scatter/internal/ui"
	"github.com/spf13/cobra"
)

// flagNoProgress is the negated form of --progress. Settings files and the
// environment use progress: false instead.
const flagNoProgress = "no-progress"

// addRunFlags registers the run flags. Flag names are the config.Key*
// setting keys so viper can bind them 1:1.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringP(config.KeyInventory, "i", config.DefaultInventoryFile, "inventory YAML file")
	f.Int(config.KeyLimit, config.DefaultLimit, "maximum hosts running at once")

	f.String(config.KeyIdentity, "", "private key for hosts that don't set one (env:VAR allowed)")
	f.StringP(config.KeyUsername, "u", "", "username for hosts that don't set one")
	f.IntP(config.KeyPort, "p", 0, "SSH port for hosts that don't set one (default 22)")
	f.String(config.KeyKnownHosts, "", "host key policy: off or strict (default off)")
	f.String(config.KeyKnownHostsFile, "", "known_hosts file for --known-hosts strict (default ~/.ssh/known_hosts)")
	f.String(config.KeyConnectTimeout, "", "timeout per connection attempt, e.g. 10s (default 10s)")
	f.String(config.KeyCommandTimeout, "", "time limit for the remote command, e.g. 2m (default none)")
	f.Int(config.KeyRetryAttempts, 1, "connection attempts per host, 1 to 5")
	f.Bool(config.KeyPTY, false, "request a pseudo-terminal for the command")
	f.Bool(config.KeyForwardAgent, true, "forward the local ssh-agent to remote commands")

	f.String(config.KeyCommandFile, "", "read the command from a file")
	f.String(config.KeyUsernameFile, "", "try each username in this file (one per line)")
	f.String(config.KeyPasswordFile, "", "try each password in this file (one per line)")
	f.Bool(config.KeyAskPass, false, "prompt for a password to try on every host")

	f.StringSlice(config.KeyTag, nil, "only hosts with this tag (repeatable)")
	f.StringSlice(config.KeyExcludeTag, nil, "skip hosts with this tag (repeatable)")
	f.StringSlice(config.KeyHosts, nil, "only hosts matching this glob, e.g. 'web-*' (repeatable)")

	f.Bool(config.KeyDryRun, false, "print the plan without connecting")
	f.String(config.KeySaveDir, "", "write <host>.stdout.txt and <host>.stderr.txt here")
	f.String(config.KeyLogFile, "", "write one JSON record per host to this file (replaced each run)")

	f.Bool(config.KeyProgress, true, "show the live progress view on a terminal")
	f.Bool(flagNoProgress, false, "print one line per host instead of the live view")
	f.Bool(config.KeyShowOutput, false, "print each host's stdout")
	f.Bool(config.KeyShowStderr, false, "print each host's stderr")
	f.CountP(config.KeyVerbose, "v", "more detail (-v results table, -vv output and debug logs)")
	f.BoolP(config.KeyQuiet, "q", false, "only print the final summary line")
	f.String(config.KeyColor, ui.ColorAuto, "color output: auto, always or never")

	cmd.MarkFlagsMutuallyExclusive(config.KeyProgress, flagNoProgress)
}

// loadSettings merges flags, SCATTER_* environment and the settings file.
func loadSettings(cmd *cobra.Command, cfgFile string) (*config.Settings, error) {
	v := config.NewViper(appFs)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Failed to read flags", "")
	}
	if err := config.ReadSettingsFile(v, appFs, cfgFile); err != nil {
		return nil, err
	}

	s, err := config.SettingsFrom(v)
	if err != nil {
		return nil, err
	}

	if noProgress, _ := cmd.Flags().GetBool(flagNoProgress); noProgress {
		s.Progress = false
	}
	return s, nil
}
