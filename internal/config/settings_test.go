package config

import (
	"testing"
	"time"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFrom_Defaults(t *testing.T) {
	v := NewViper(afero.NewMemMapFs())

	s, err := SettingsFrom(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultInventoryFile, s.Inventory)
	assert.Equal(t, DefaultLimit, s.Limit)
	assert.Equal(t, 1, s.RetryAttempts)
	assert.True(t, s.Progress)
	assert.Equal(t, "auto", s.Color)
	assert.Empty(t, s.KnownHosts, "policy is only set when asked for")
	assert.Nil(t, s.PTY)
	assert.Zero(t, s.ConnectTimeout)
	assert.Nil(t, s.Tags)
}

func TestSettingsFrom_Env(t *testing.T) {
	t.Setenv("SCATTER_LIMIT", "7")
	t.Setenv("SCATTER_RETRY_ATTEMPTS", "3")
	t.Setenv("SCATTER_KNOWN_HOSTS", "no")
	t.Setenv("SCATTER_CONNECT_TIMEOUT", "2.5")
	t.Setenv("SCATTER_PTY", "true")

	v := NewViper(afero.NewMemMapFs())
	s, err := SettingsFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 7, s.Limit)
	assert.Equal(t, 3, s.RetryAttempts)
	assert.Equal(t, KnownHostsOff, s.KnownHosts)
	assert.Equal(t, 2500*time.Millisecond, s.ConnectTimeout)
	require.NotNil(t, s.PTY)
	assert.True(t, *s.PTY)
}

func TestSettingsFrom_Overrides(t *testing.T) {
	v := NewViper(afero.NewMemMapFs())
	v.Set(KeyKnownHosts, "strict")
	v.Set(KeyCommandTimeout, "1m")
	v.Set(KeyTag, []string{"web", " ", "db"})
	v.Set(KeyVerbose, 2)

	s, err := SettingsFrom(v)
	require.NoError(t, err)

	assert.Equal(t, KnownHostsStrict, s.KnownHosts)
	assert.Equal(t, time.Minute, s.CommandTimeout)
	assert.Equal(t, []string{"web", "db"}, s.Tags)
	assert.True(t, s.ShowOutput, "-vv shows stdout")
	assert.True(t, s.ShowStderr, "-vv shows stderr")
}

func TestSettingsFrom_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{name: "zero limit", key: KeyLimit, value: 0},
		{name: "retry too high", key: KeyRetryAttempts, value: 6},
		{name: "retry zero", key: KeyRetryAttempts, value: 0},
		{name: "bad port", key: KeyPort, value: 70000},
		{name: "bad duration", key: KeyConnectTimeout, value: "soon"},
		{name: "negative duration", key: KeyCommandTimeout, value: "-5s"},
		{name: "bad color", key: KeyColor, value: "rainbow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper(afero.NewMemMapFs())
			v.Set(tt.key, tt.value)

			_, err := SettingsFrom(v)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestSettingsFrom_UnknownKnownHostsPolicy(t *testing.T) {
	v := NewViper(afero.NewMemMapFs())
	v.Set(KeyKnownHosts, "bogus")

	_, err := SettingsFrom(v)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUsage))
	assert.Contains(t, err.Error(), `"bogus"`)
}

func TestReadSettingsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/scatter.yaml", []byte("limit: 12\nknown-hosts: strict\n"), 0644))

	v := NewViper(fs)
	require.NoError(t, ReadSettingsFile(v, fs, "/etc/scatter.yaml"))

	s, err := SettingsFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Limit)
	assert.Equal(t, KnownHostsStrict, s.KnownHosts)
}

func TestReadSettingsFile_Missing(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := NewViper(fs)

	err := ReadSettingsFile(v, fs, "/nowhere.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	// The global file is optional.
	assert.NoError(t, ReadSettingsFile(v, fs, ""))
}
