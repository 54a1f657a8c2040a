package dashboard

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/scatter/internal/parallel"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
)

var (
	_ session.Observer = (*Bridge)(nil)
	_ parallel.Sink    = (*Bridge)(nil)
)

// sender is the part of *tea.Program the bridge needs.
type sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards executor state changes and outcomes to the Bubble Tea
// program via Send, which is goroutine-safe. It is both the executor's
// Observer and a run Sink.
type Bridge struct {
	program sender
	once    sync.Once
}

// NewBridge creates a new bridge that forwards events to the given program.
func NewBridge(program sender) *Bridge {
	return &Bridge{program: program}
}

func (b *Bridge) String() string { return "dashboard" }

// StateChanged forwards a phase transition. Completed is skipped; the
// outcome carries the final state.
func (b *Bridge) StateChanged(t target.Target, s session.State) {
	if s == session.Completed {
		return
	}
	b.program.Send(StateMsg{Index: t.Index, Name: t.Name, State: s})
}

// Record forwards a finished host.
func (b *Bridge) Record(o session.Outcome) error {
	b.program.Send(OutcomeMsg{Outcome: o})
	return nil
}

// Close tells the program the run is over.
func (b *Bridge) Close() error {
	b.once.Do(func() { b.program.Send(DoneMsg{}) })
	return nil
}
