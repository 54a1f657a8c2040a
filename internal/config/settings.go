package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides: SCATTER_LIMIT, SCATTER_RETRY_ATTEMPTS, ...
	EnvPrefix = "SCATTER"
	// GlobalConfigDir holds the optional settings file, relative to $HOME.
	GlobalConfigDir = ".config/scatter"
	// GlobalConfigFile supplies flag defaults when present.
	GlobalConfigFile = "config.yaml"

	// DefaultLimit is the default concurrency ceiling.
	DefaultLimit = 50
	// MaxRetryAttempts bounds --retry-attempts.
	MaxRetryAttempts = 5
)

// Setting keys. They double as flag names, so viper can bind them 1:1.
const (
	KeyInventory      = "inventory"
	KeyLimit          = "limit"
	KeyIdentity       = "identity"
	KeyUsername       = "username"
	KeyPort           = "port"
	KeyKnownHosts     = "known-hosts"
	KeyKnownHostsFile = "known-hosts-file"
	KeyConnectTimeout = "connect-timeout"
	KeyCommandTimeout = "command-timeout"
	KeyRetryAttempts  = "retry-attempts"
	KeyPTY            = "pty"
	KeyForwardAgent   = "forward-agent"
	KeyCommandFile    = "command-file"
	KeyUsernameFile   = "username-file"
	KeyPasswordFile   = "password-file"
	KeyAskPass        = "ask-pass"
	KeyTag            = "tag"
	KeyExcludeTag     = "exclude-tag"
	KeyHosts          = "hosts"
	KeyDryRun         = "dry-run"
	KeySaveDir        = "save-dir"
	KeyLogFile        = "log-file"
	KeyProgress       = "progress"
	KeyShowOutput     = "show-output"
	KeyShowStderr     = "show-stderr"
	KeyVerbose        = "verbose"
	KeyQuiet          = "quiet"
	KeyColor          = "color"
)

// Settings are the invocation-level options after flags, environment and
// the optional settings file have been merged by viper.
type Settings struct {
	Inventory string
	Limit     int

	// Connection and auth overrides. Zero values mean "not overridden".
	Identity       string
	Username       string
	Port           int
	KnownHosts     KnownHostsPolicy // empty unless explicitly set
	KnownHostsFile string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	RetryAttempts  int
	PTY            *bool // nil unless explicitly set
	ForwardAgent   bool

	CommandFile  string
	UsernameFile string
	PasswordFile string
	AskPass      bool

	Tags         []string
	ExcludeTags  []string
	HostPatterns []string

	DryRun     bool
	SaveDir    string
	LogFile    string
	Progress   bool
	ShowOutput bool
	ShowStderr bool
	Verbose    int
	Quiet      bool
	Color      string
}

// NewViper returns a viper instance reading SCATTER_* environment variables
// and using fs for any settings file.
func NewViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyInventory, DefaultInventoryFile)
	v.SetDefault(KeyLimit, DefaultLimit)
	v.SetDefault(KeyRetryAttempts, 1)
	v.SetDefault(KeyProgress, true)
	v.SetDefault(KeyForwardAgent, true)
	v.SetDefault(KeyColor, "auto")
	return v
}

// ReadSettingsFile merges a settings file into v. An explicit path must
// exist; with an empty path the global file is used when it exists.
func ReadSettingsFile(v *viper.Viper, fs afero.Fs, path string) error {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	} else {
		path = ExpandPath(path)
	}

	if _, err := fs.Stat(path); err != nil {
		if explicit {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Settings file not found: "+path,
				"Check the path passed to --config.")
		}
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read settings file "+path,
			"Check the file is valid YAML with flag names as keys.")
	}
	return nil
}

// SettingsFrom extracts and validates Settings from v.
func SettingsFrom(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Inventory:      v.GetString(KeyInventory),
		Limit:          v.GetInt(KeyLimit),
		Identity:       v.GetString(KeyIdentity),
		Username:       v.GetString(KeyUsername),
		Port:           v.GetInt(KeyPort),
		KnownHostsFile: v.GetString(KeyKnownHostsFile),
		RetryAttempts:  v.GetInt(KeyRetryAttempts),
		ForwardAgent:   v.GetBool(KeyForwardAgent),
		CommandFile:    v.GetString(KeyCommandFile),
		UsernameFile:   v.GetString(KeyUsernameFile),
		PasswordFile:   v.GetString(KeyPasswordFile),
		AskPass:        v.GetBool(KeyAskPass),
		Tags:           nonEmpty(v.GetStringSlice(KeyTag)),
		ExcludeTags:    nonEmpty(v.GetStringSlice(KeyExcludeTag)),
		HostPatterns:   nonEmpty(v.GetStringSlice(KeyHosts)),
		DryRun:         v.GetBool(KeyDryRun),
		SaveDir:        v.GetString(KeySaveDir),
		LogFile:        v.GetString(KeyLogFile),
		Progress:       v.GetBool(KeyProgress),
		ShowOutput:     v.GetBool(KeyShowOutput),
		ShowStderr:     v.GetBool(KeyShowStderr),
		Verbose:        v.GetInt(KeyVerbose),
		Quiet:          v.GetBool(KeyQuiet),
		Color:          strings.ToLower(v.GetString(KeyColor)),
	}

	var err error
	if s.ConnectTimeout, err = durationSetting(v, KeyConnectTimeout); err != nil {
		return nil, err
	}
	if s.CommandTimeout, err = durationSetting(v, KeyCommandTimeout); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(v.GetString(KeyKnownHosts)); raw != "" {
		policy, ok := ParseKnownHosts(raw)
		if !ok {
			return nil, errors.New(errors.ErrUsage,
				fmt.Sprintf("--known-hosts must be off or strict, got %q", raw),
				"Use --known-hosts strict to verify host keys, or off to skip the check.")
		}
		s.KnownHosts = policy
	}
	if v.IsSet(KeyPTY) {
		pty := v.GetBool(KeyPTY)
		s.PTY = &pty
	}

	// -vv implies both output blocks.
	if s.Verbose >= 2 {
		s.ShowOutput = true
		s.ShowStderr = true
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ranges that cobra's flag types can't express.
func (s *Settings) Validate() error {
	if s.Limit < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--limit must be at least 1, got %d", s.Limit),
			"Use --limit 1 to run hosts one at a time.")
	}
	if s.RetryAttempts < 1 || s.RetryAttempts > MaxRetryAttempts {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--retry-attempts must be between 1 and %d, got %d", MaxRetryAttempts, s.RetryAttempts),
			"Retries only cover connection failures; 1 means no retry.")
	}
	if s.Port < 0 || s.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--port %d is out of range", s.Port),
			"Ports go from 1 to 65535.")
	}
	if s.ConnectTimeout < 0 || s.CommandTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"Timeouts can't be negative",
			"Try something like 10s or 2m.")
	}
	switch s.Color {
	case "auto", "always", "never":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--color must be auto, always or never, got %q", s.Color),
			"")
	}
	return nil
}

// durationSetting accepts a Go duration ("10s") or a bare number of seconds ("2.5").
func durationSetting(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid --%s", raw, key),
			"Try something like 5s, 2m, or 500ms.")
	}
	return d, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
