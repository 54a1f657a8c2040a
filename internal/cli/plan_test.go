package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/rileyhilliard/scatter/internal/config"
	"github.com/rileyhilliard/scatter/internal/credential"
	"github.com/rileyhilliard/scatter/internal/parallel"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthSummary(t *testing.T) {
	key := credential.Attempt{Method: credential.Key, Username: "a"}
	pw := credential.Attempt{Method: credential.Password, Username: "a", Secret: "s3cret"}

	tests := []struct {
		name     string
		attempts []credential.Attempt
		want     string
	}{
		{name: "none", attempts: nil, want: "none"},
		{name: "single key", attempts: []credential.Attempt{key}, want: "key"},
		{name: "key then passwords", attempts: []credential.Attempt{key, key, pw, pw, pw, pw}, want: "key x2, password x4"},
		{name: "passwords only", attempts: []credential.Attempt{pw, pw}, want: "password x2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := authSummary(tt.attempts)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "s3cret")
		})
	}
}

func TestRenderPlan_UsesAgent(t *testing.T) {
	plan := &runPlan{
		targets: []target.Target{{
			Index: 0, Name: "app1", Address: "10.0.0.1", Port: 2200,
			Username: "ops", RetryAttempts: 3, Command: "\n  uptime\nwho",
		}},
		knownHosts: config.KnownHostsOff,
	}

	var withAgent, withoutAgent bytes.Buffer
	renderPlan(&withAgent, plan, 5, true, false)
	renderPlan(&withoutAgent, plan, 5, false, false)

	assert.Contains(t, withAgent.String(), "10.0.0.1:2200")
	assert.Contains(t, withAgent.String(), "key")
	assert.Contains(t, withAgent.String(), "uptime")
	assert.NotContains(t, withAgent.String(), "who", "only the first command line is shown")
	assert.Contains(t, withoutAgent.String(), "none")
}

func TestRenderPlan_VerboseListsAttempts(t *testing.T) {
	plan := &runPlan{
		targets: []target.Target{
			{Index: 0, Name: "app1", Address: "10.0.0.1", Port: 22, Username: "ops", Password: "pw", Command: "id"},
			{Index: 1, Name: "app2", Address: "10.0.0.2", Port: 22, Username: "ops", Command: "id"},
		},
		knownHosts: config.KnownHostsOff,
	}

	var buf bytes.Buffer
	renderPlan(&buf, plan, 5, true, true)
	out := buf.String()

	assert.Contains(t, out, "Attempt order:")
	assert.Contains(t, out, "    1. key ops (agent)\n    2. password ops (***)\n  app2\n    1. key ops (agent)\n")
	assert.NotContains(t, out, "pw)")

	buf.Reset()
	renderPlan(&buf, plan, 5, false, true)
	assert.Contains(t, buf.String(), "  app2\n    (no credentials)")
}

func TestResultRows(t *testing.T) {
	code := 0
	sum := parallel.Summary{Outcomes: []session.Outcome{
		{Target: target.Target{Index: 1, Name: "b"}, Status: session.ConnectFailed, Reason: "refused", Duration: time.Second},
		{Target: target.Target{Index: 0, Name: "a"}, Status: session.Ok, ExitCode: &code, Username: "ops"},
	}}

	rows := resultRows(sum)

	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Host, "rows follow inventory order")
	assert.Equal(t, "ok", rows[0].Status)
	assert.Equal(t, "0", rows[0].ExitCode)
	assert.Equal(t, "ops", rows[0].Username)
	assert.Equal(t, "b", rows[1].Host)
	assert.Equal(t, "connect_failed", rows[1].Status)
	assert.Equal(t, "-", rows[1].ExitCode)
	assert.Equal(t, "1.0s", rows[1].Duration)
	assert.Equal(t, "refused", rows[1].Reason)
}

func TestReasonWidth_NonTerminal(t *testing.T) {
	assert.Equal(t, 60, reasonWidth(&bytes.Buffer{}))
}
