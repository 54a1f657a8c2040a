// Package target turns an inventory plus invocation overrides into the
// immutable list of per-host execution plans.
package target

import (
	"strings"
	"time"

	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/credential"
)

// Target is one fully resolved host. Built once by the Resolver and never
// modified afterwards; copies are safe to hand to other goroutines.
type Target struct {
	// Index is the position of the host in the (filtered) inventory.
	Index int
	// Name is the host as written in the inventory. Used for display,
	// logs and save-dir file names.
	Name string
	// Address is what gets dialed: the ssh config HostName for aliases,
	// otherwise Name.
	Address string
	Port    int

	Username string
	Identity string
	Password string

	KnownHosts     config.KnownHostsPolicy
	PTY            bool
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	RetryAttempts  int

	Command string
	Tags    []string

	// Usernames and Passwords come from list files; nil when not supplied.
	Usernames []string
	Passwords []string
}

// CredentialInput is the input to credential.Plan for this target.
func (t Target) CredentialInput(agentAvailable bool) credential.Input {
	return credential.Input{
		Username:       t.Username,
		Usernames:      t.Usernames,
		Identity:       t.Identity,
		AgentAvailable: agentAvailable,
		Password:       t.Password,
		Passwords:      t.Passwords,
	}
}

// Attempts returns the ordered credential attempts for this target.
func (t Target) Attempts(agentAvailable bool) []credential.Attempt {
	return credential.Plan(t.CredentialInput(agentAvailable))
}

// CommandPreview returns the first non-empty line of the command, cut to width runes.
func (t Target) CommandPreview(width int) string {
	line := ""
	for _, l := range strings.Split(t.Command, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if r := []rune(line); width > 0 && len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return line
}
