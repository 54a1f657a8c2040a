// Package session runs one target through connect, authenticate and
// execute, and turns whatever happens into exactly one Outcome.
package session

import (
	"time"

	"github.com/rileyhilliard/scatter/internal/target"
)

// Status is the terminal result of a target.
type Status int

const (
	Ok Status = iota
	ConnectFailed
	AuthFailed
	CommandTimedOut
	CommandFailed
	Cancelled
)

// String returns the status as written to logs.
func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case ConnectFailed:
		return "connect_failed"
	case AuthFailed:
		return "auth_failed"
	case CommandTimedOut:
		return "timeout"
	case CommandFailed:
		return "command_failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Ran reports whether the command ran to completion (Ok or a non-zero exit).
func (s Status) Ran() bool {
	return s == Ok || s == CommandFailed
}

// State is a phase of the per-target state machine.
type State int

const (
	Pending State = iota
	Connecting
	Authenticating
	Executing
	Completed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// failure maps the phase a run broke down in to the status it ends with.
func (s State) failure() Status {
	switch s {
	case Authenticating:
		return AuthFailed
	case Executing:
		return CommandFailed
	default:
		return ConnectFailed
	}
}

// Observer is told about every phase change. Calls for one target come
// from that target's goroutine, in order; calls for different targets
// arrive concurrently.
type Observer interface {
	StateChanged(t target.Target, s State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t target.Target, s State)

// StateChanged calls f.
func (f ObserverFunc) StateChanged(t target.Target, s State) { f(t, s) }

// Outcome is the single result of a target. Built once, never mutated.
type Outcome struct {
	Target target.Target
	Status Status
	// ExitCode is set only when the command ran to completion.
	ExitCode *int
	Stdout   []byte
	Stderr   []byte
	// Attempts counts connection attempts.
	Attempts int
	// Username is the account that was accepted, or the last one tried.
	Username string
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Reason   string
}

// OK reports whether the target succeeded.
func (o Outcome) OK() bool {
	return o.Status == Ok
}

// ExitCodeOr returns the exit code or def when there is none.
func (o Outcome) ExitCodeOr(def int) int {
	if o.ExitCode == nil {
		return def
	}
	return *o.ExitCode
}
