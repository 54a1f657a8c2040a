package dashboard

import (
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestBridge_Forwards(t *testing.T) {
	rec := &recordingSender{}
	b := NewBridge(rec)
	tg := target.Target{Index: 3, Name: "web4"}

	b.StateChanged(tg, session.Connecting)
	b.StateChanged(tg, session.Completed)
	require.NoError(t, b.Record(session.Outcome{Target: tg, Status: session.Ok}))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	require.Len(t, rec.msgs, 3, "Completed state skipped, Done sent once")
	assert.Equal(t, StateMsg{Index: 3, Name: "web4", State: session.Connecting}, rec.msgs[0])
	assert.IsType(t, OutcomeMsg{}, rec.msgs[1])
	assert.Equal(t, DoneMsg{}, rec.msgs[2])
	assert.Equal(t, "dashboard", b.String())
}
