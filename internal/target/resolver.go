package target

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/rileyhilliard/scatter/pkg/sshutil"
)

// Overrides are invocation-level values (flags, environment). Zero values
// mean "not given".
type Overrides struct {
	Username       string
	Port           int
	Identity       string
	Password       string
	KnownHosts     config.KnownHostsPolicy
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	RetryAttempts  int
	PTY            *bool
}

// Input is everything a resolution needs.
type Input struct {
	Inventory *config.Inventory
	Overrides Overrides
	Filter    Filter

	// Usernames and Passwords are list-file contents, nil when not given.
	Usernames []string
	Passwords []string

	// FileCommand is the content of --command-file, InlineCommand the
	// positional command.
	FileCommand   string
	InlineCommand string
}

// Resolver merges inventory, overrides and ssh config into targets.
type Resolver struct {
	// SSHConfig supplies fallbacks for hosts that are ssh config aliases.
	// May be nil.
	SSHConfig *sshutil.SSHConfig
	// LocalUser is the last-resort username.
	LocalUser string
}

// NewResolver returns a Resolver using sshCfg for fallbacks and the
// current user as the final username fallback.
func NewResolver(sshCfg *sshutil.SSHConfig) *Resolver {
	return &Resolver{SSHConfig: sshCfg, LocalUser: currentUser()}
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "root"
}

// RunKnownHosts returns the run-wide host key policy: override, then
// inventory defaults, then off.
func RunKnownHosts(inv *config.Inventory, o Overrides) config.KnownHostsPolicy {
	if o.KnownHosts != "" {
		return o.KnownHosts
	}
	if inv != nil && inv.Defaults.KnownHosts != "" {
		return inv.Defaults.KnownHosts
	}
	return config.KnownHostsOff
}

// Resolve produces one Target per surviving host entry, in inventory order.
// Every error is a CONFIG error and nothing touches the network.
func (r *Resolver) Resolve(in Input) ([]Target, error) {
	if in.Inventory == nil {
		return nil, errors.New(errors.ErrConfig, "No inventory loaded", "")
	}
	if err := config.ValidateInventory(in.Inventory); err != nil {
		return nil, err
	}

	o := in.Overrides
	retries := o.RetryAttempts
	if retries == 0 {
		retries = 1
	}
	if retries < 1 || retries > config.MaxRetryAttempts {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("retry attempts must be between 1 and %d, got %d", config.MaxRetryAttempts, retries),
			"")
	}
	if o.ConnectTimeout < 0 || o.CommandTimeout < 0 {
		return nil, errors.New(errors.ErrConfig, "Timeouts can't be negative", "")
	}

	hosts, err := in.Filter.Apply(in.Inventory.Hosts)
	if err != nil {
		return nil, err
	}

	defaults := in.Inventory.Defaults
	overridePassword := config.ResolveRef(o.Password)

	connectTimeout := o.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaults.ConnectTimeout.Std()
	}
	if connectTimeout == 0 {
		connectTimeout = config.DefaultConnectTimeout
	}

	pty := defaults.PTY
	if o.PTY != nil {
		pty = *o.PTY
	}

	knownHosts := RunKnownHosts(in.Inventory, o)

	targets := make([]Target, 0, len(hosts))
	for i, h := range hosts {
		command := firstCommand(h.Command, in.FileCommand, in.InlineCommand)
		if command == "" {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("No command for host %s", h.Host),
				"Pass a command, use --command-file, or set 'command:' on the host.")
		}

		sshHost := r.SSHConfig.Lookup(h.Host)

		t := Target{
			Index:          i,
			Name:           h.Host,
			Address:        first(sshHost.HostName, h.Host),
			Port:           firstPort(h.Port, o.Port, defaults.Port, sshHost.Port, config.DefaultPort),
			Username:       first(h.Username, o.Username, defaults.Username, sshHost.User, r.LocalUser),
			Identity:       config.ExpandPath(first(h.Identity, config.ResolveRef(o.Identity), defaults.Identity, sshHost.IdentityFile)),
			Password:       first(h.Password, overridePassword, defaults.Password),
			KnownHosts:     knownHosts,
			PTY:            pty,
			ConnectTimeout: connectTimeout,
			CommandTimeout: o.CommandTimeout,
			RetryAttempts:  retries,
			Command:        command,
			Tags:           append([]string(nil), h.Tags...),
			Usernames:      copyOrNil(in.Usernames),
			Passwords:      copyOrNil(in.Passwords),
		}
		targets = append(targets, t)
	}

	return targets, nil
}

// firstCommand applies host > file > inline. Whitespace-only text counts
// as absent.
func firstCommand(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPort(ports ...int) int {
	for _, p := range ports {
		if p > 0 {
			return p
		}
	}
	return config.DefaultPort
}

func copyOrNil(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}
