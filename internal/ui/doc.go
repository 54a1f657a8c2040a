// Package ui provides the terminal presentation pieces shared by the CLI and
// the live dashboard: the color palette and symbols, Bubbles tables for the
// dry-run plan and the results, the spinner frames, and TTY helpers.
//
// Colors are ANSI codes so they follow the terminal theme. ApplyColorMode
// maps the --color flag onto a termenv profile; "auto" honors NO_COLOR and
// CLICOLOR_FORCE.
package ui
