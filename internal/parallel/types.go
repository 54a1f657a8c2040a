package parallel

import (
	"context"

	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
)

// OutputMode controls how per-host results are displayed while a run is in
// progress.
type OutputMode string

const (
	// OutputProgress shows a live dashboard (default on a TTY).
	OutputProgress OutputMode = "progress"
	// OutputStream prints one line per host as it completes.
	OutputStream OutputMode = "stream"
	// OutputQuiet shows the final summary only.
	OutputQuiet OutputMode = "quiet"
)

// ResolveOutputMode picks the display mode for a run. Progress needs terminal
// control sequences, so without a TTY it falls back to stream.
func ResolveOutputMode(progress, quiet, isTTY bool) OutputMode {
	switch {
	case quiet:
		return OutputQuiet
	case progress && isTTY:
		return OutputProgress
	default:
		return OutputStream
	}
}

// TargetExecutor runs one target to its outcome. *session.Executor is the
// production implementation.
type TargetExecutor interface {
	Execute(ctx context.Context, t target.Target) session.Outcome
}

// Sink receives every outcome of a run exactly once, in completion order.
// Record is called from a single goroutine per sink; Close is called once
// after the last Record.
type Sink interface {
	Record(o session.Outcome) error
	Close() error
}
