package config

import (
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInventory = `
defaults:
  username: deploy
  port: 2222
  connect_timeout: 5
  known_hosts: "off"
  pty: true
  identity: ~/.ssh/id_ed25519
  password: env:SCATTER_TEST_DEFAULT_PW
hosts:
  - host: web1.example.com
    tags: [web, prod]
  - host: db1
    username: postgres
    port: 22
    password: env:SCATTER_TEST_DB_PW
    command: "pg_isready"
    tags: [db]
`

func TestLoadInventory(t *testing.T) {
	t.Setenv("SCATTER_TEST_DEFAULT_PW", "default-secret")
	t.Setenv("SCATTER_TEST_DB_PW", "db-secret")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/inventory.yaml", []byte(sampleInventory), 0644))

	inv, err := LoadInventory(fs, "/work/inventory.yaml")
	require.NoError(t, err)

	assert.Equal(t, "deploy", inv.Defaults.Username)
	assert.Equal(t, 2222, inv.Defaults.Port)
	assert.Equal(t, 5*time.Second, inv.Defaults.ConnectTimeout.Std())
	assert.Equal(t, KnownHostsOff, inv.Defaults.KnownHosts)
	assert.True(t, inv.Defaults.PTY)
	assert.Equal(t, "~/.ssh/id_ed25519", inv.Defaults.Identity, "paths are expanded by the resolver, not the loader")
	assert.Equal(t, "default-secret", inv.Defaults.Password)

	require.Len(t, inv.Hosts, 2)
	assert.Equal(t, "web1.example.com", inv.Hosts[0].Host)
	assert.True(t, inv.Hosts[0].HasTag("prod"))
	assert.False(t, inv.Hosts[0].HasTag("db"))
	assert.Equal(t, 0, inv.Hosts[0].Port, "unset port stays zero so fallbacks can apply")

	assert.Equal(t, "postgres", inv.Hosts[1].Username)
	assert.Equal(t, "db-secret", inv.Hosts[1].Password)
	assert.Equal(t, "pg_isready", inv.Hosts[1].Command)
}

func TestLoadInventory_Missing(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := LoadInventory(fs, "nope.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "Inventory file not found")
}

func TestParseInventory_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "empty document",
			content: "",
			wantMsg: "no hosts",
		},
		{
			name:    "empty host list",
			content: "hosts: []\n",
			wantMsg: "no hosts",
		},
		{
			name:    "entry without host",
			content: "hosts:\n  - username: root\n",
			wantMsg: "Host entry #1 has no 'host' field",
		},
		{
			name:    "port out of range",
			content: "hosts:\n  - host: a\n    port: 70000\n",
			wantMsg: "out of range",
		},
		{
			name:    "negative timeout",
			content: "defaults:\n  connect_timeout: -1\nhosts:\n  - host: a\n",
			wantMsg: "can't be negative",
		},
		{
			name:    "unknown key",
			content: "hosts:\n  - host: a\n    hostname: b\n",
			wantMsg: "Invalid inventory format",
		},
		{
			name:    "bad duration",
			content: "defaults:\n  connect_timeout: soon\nhosts:\n  - host: a\n",
			wantMsg: "Invalid inventory format",
		},
		{
			name:    "hosts not a list",
			content: "hosts: web1\n",
			wantMsg: "Invalid inventory format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInventory(strings.NewReader(tt.content), "test.yaml")
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseInventory_DefaultTimeout(t *testing.T) {
	inv, err := ParseInventory(strings.NewReader("hosts:\n  - host: a\n"), "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConnectTimeout, inv.Defaults.ConnectTimeout.Std())
	assert.Empty(t, inv.Defaults.KnownHosts, "unset policy stays empty")
}

func TestParseInventory_DurationString(t *testing.T) {
	inv, err := ParseInventory(strings.NewReader("defaults:\n  connect_timeout: 1m30s\nhosts:\n  - host: a\n"), "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, inv.Defaults.ConnectTimeout.Std())
}

func TestParseKnownHosts(t *testing.T) {
	tests := []struct {
		input string
		want  KnownHostsPolicy
		ok    bool
	}{
		{"off", KnownHostsOff, true},
		{"OFF", KnownHostsOff, true},
		{"no", KnownHostsOff, true},
		{"false", KnownHostsOff, true},
		{"0", KnownHostsOff, true},
		{" off ", KnownHostsOff, true},
		{"strict", KnownHostsStrict, true},
		{"on", KnownHostsStrict, true},
		{"yes", KnownHostsStrict, true},
		{"1", KnownHostsStrict, true},
		{"whatever", "", false},
		{"stirct", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseKnownHosts(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnownHosts_YAMLRejectsUnknownPolicy(t *testing.T) {
	_, err := ParseInventory(strings.NewReader("defaults:\n  known_hosts: maybe\nhosts:\n  - host: a\n"), "test.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known_hosts must be off or strict")
}

func TestKnownHosts_YAMLBoolean(t *testing.T) {
	inv, err := ParseInventory(strings.NewReader("defaults:\n  known_hosts: false\nhosts:\n  - host: a\n"), "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, KnownHostsOff, inv.Defaults.KnownHosts)

	inv, err = ParseInventory(strings.NewReader("defaults:\n  known_hosts: true\nhosts:\n  - host: a\n"), "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, KnownHostsStrict, inv.Defaults.KnownHosts)
}

func TestParseCredentialList(t *testing.T) {
	data := []byte("\xef\xbb\xbfroot\n\n  admin  \r\n#notacomment\n\t\nubuntu")

	assert.Equal(t, []string{"root", "admin", "#notacomment", "ubuntu"}, ParseCredentialList(data))
	assert.Empty(t, ParseCredentialList(nil))
	assert.Empty(t, ParseCredentialList([]byte("\n \n")))
}

func TestReadCredentialList(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lists/users.txt", []byte("alice\nbob\n"), 0600))

	users, err := ReadCredentialList(fs, "/lists/users.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	_, err = ReadCredentialList(fs, "/lists/missing.txt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestReadCommandFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	script := "set -e\nuptime\n"
	require.NoError(t, afero.WriteFile(fs, "/cmds/check.sh", []byte(script), 0644))

	got, err := ReadCommandFile(fs, "/cmds/check.sh")
	require.NoError(t, err)
	assert.Equal(t, script, got)

	_, err = ReadCommandFile(fs, "/cmds/none.sh")
	assert.Error(t, err)
}
