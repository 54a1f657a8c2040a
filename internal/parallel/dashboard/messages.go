package dashboard

import (
	"github.com/rileyhilliard/scatter/internal/session"
)

// StateMsg signals a host entered a new phase.
type StateMsg struct {
	Index int
	Name  string
	State session.State
}

// OutcomeMsg signals a host finished.
type OutcomeMsg struct {
	Outcome session.Outcome
}

// DoneMsg signals every outcome has been delivered.
type DoneMsg struct{}
