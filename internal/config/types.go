package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the SSH port used when nothing else names one.
const DefaultPort = 22

// DefaultConnectTimeout bounds a single TCP connect + handshake when the
// inventory and flags are silent.
const DefaultConnectTimeout = 10 * time.Second

// KnownHostsPolicy controls whether remote host keys are verified.
type KnownHostsPolicy string

const (
	// KnownHostsOff skips host key verification entirely: no known_hosts file is read.
	KnownHostsOff KnownHostsPolicy = "off"
	// KnownHostsStrict verifies host keys against a known_hosts file.
	KnownHostsStrict KnownHostsPolicy = "strict"
)

// ParseKnownHosts maps the accepted spellings onto a policy:
// off/no/false/0 and strict/on/yes/true/1. Anything else is not a policy.
func ParseKnownHosts(value string) (KnownHostsPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "off", "no", "false", "0":
		return KnownHostsOff, true
	case "strict", "on", "yes", "true", "1":
		return KnownHostsStrict, true
	}
	return "", false
}

// UnmarshalYAML accepts both YAML booleans and strings.
func (p *KnownHostsPolicy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: known_hosts must be a scalar", node.Line)
	}
	policy, ok := ParseKnownHosts(node.Value)
	if !ok {
		return fmt.Errorf("line %d: known_hosts must be off or strict, got %q", node.Line, node.Value)
	}
	*p = policy
	return nil
}

// Duration is a time.Duration that decodes from either a number of seconds
// (10, 2.5) or a Go duration string ("10s", "1m30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration", node.Line)
	}
	v := strings.TrimSpace(node.Value)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a duration (try 10 or 10s)", node.Line, v)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// HostDefaults is the inventory-wide template applied to every host.
type HostDefaults struct {
	Username       string           `yaml:"username"`
	Port           int              `yaml:"port"`
	ConnectTimeout Duration         `yaml:"connect_timeout"`
	KnownHosts     KnownHostsPolicy `yaml:"known_hosts"`
	PTY            bool             `yaml:"pty"`

	// Identity is a private key path; may be an env:NAME reference.
	Identity string `yaml:"identity"`

	// Password may be given inline or as an env:NAME reference.
	Password string `yaml:"password"`
}

// HostEntry is a single host from the inventory. Empty fields inherit.
type HostEntry struct {
	Host     string   `yaml:"host"`
	Username string   `yaml:"username"`
	Port     int      `yaml:"port"`
	Identity string   `yaml:"identity"`
	Password string   `yaml:"password"`
	Command  string   `yaml:"command"`
	Tags     []string `yaml:"tags"`
}

// HasTag reports whether the host carries the given tag.
func (h HostEntry) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Inventory is the parsed inventory file: defaults plus an ordered host list.
type Inventory struct {
	Defaults HostDefaults `yaml:"defaults"`
	Hosts    []HostEntry  `yaml:"hosts"`
}

// DefaultHostDefaults returns the template used before the file is decoded.
// KnownHosts is left empty so callers can tell "not set" from "strict".
func DefaultHostDefaults() HostDefaults {
	return HostDefaults{
		ConnectTimeout: Duration(DefaultConnectTimeout),
	}
}
