package sshutil

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
)

// HostConfig is what ~/.ssh/config says about one host alias.
// Empty fields mean the config had nothing to say.
type HostConfig struct {
	Alias        string
	HostName     string
	User         string
	Port         int
	IdentityFile string
}

// SSHConfig answers per-host lookups against a parsed ssh config file.
// The zero value (or a nil pointer) answers every lookup with nothing.
type SSHConfig struct {
	path      string
	cfg       *ssh_config.Config
	matchLine int
	warnOnce  sync.Once
}

// WarningHandler receives non-fatal notices: ssh config problems and
// refused agent forwarding.
// If nil they go to the standard logger.
var WarningHandler func(message string)

func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
	} else {
		log.Printf("Warning: %s", message)
	}
}

// DefaultSSHConfigPath is ~/.ssh/config.
func DefaultSSHConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// LoadSSHConfig parses the ssh config at path. A missing file is not an
// error; it yields an SSHConfig that knows nothing.
func LoadSSHConfig(path string) (*SSHConfig, error) {
	content, matchLine, err := preprocessSSHConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SSHConfig{path: path}, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &SSHConfig{path: path, cfg: cfg, matchLine: matchLine}, nil
}

// Lookup returns the settings for alias.
func (s *SSHConfig) Lookup(alias string) HostConfig {
	hc := HostConfig{Alias: alias}
	if s == nil || s.cfg == nil {
		return hc
	}

	found := false
	if hostname, _ := s.cfg.Get(alias, "HostName"); hostname != "" {
		hc.HostName = hostname
		found = true
	}
	if user, _ := s.cfg.Get(alias, "User"); user != "" {
		hc.User = user
		found = true
	}
	if port, _ := s.cfg.Get(alias, "Port"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p <= 65535 {
			hc.Port = p
			found = true
		}
	}
	if identity, _ := s.cfg.Get(alias, "IdentityFile"); identity != "" {
		hc.IdentityFile = expandPath(identity)
		found = true
	}

	// Only warn when the host wasn't found, it might be defined after the Match.
	if s.matchLine > 0 && !found {
		s.warnOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"Host '%s' not found in %s (it has a Match block at line %d that may hide later entries). "+
					"If this host is defined after line %d, move it earlier.",
				alias, s.path, s.matchLine, s.matchLine))
		})
	}

	return hc
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// kevinburke/ssh_config doesn't support Match, so everything after it is dropped.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}
