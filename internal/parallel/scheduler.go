package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/scatter/internal/logger"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
)

// Scheduler dispatches one executor per target under a global concurrency
// ceiling and streams outcomes in completion order.
type Scheduler struct {
	exec  TargetExecutor
	limit int
	log   logger.Logger

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

// NewScheduler creates a scheduler that runs at most limit executors at once.
// A limit below 1 is treated as 1.
func NewScheduler(exec TargetExecutor, limit int) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	return &Scheduler{exec: exec, limit: limit, log: logger.Noop()}
}

// SetLogger sets the debug logger.
func (s *Scheduler) SetLogger(l logger.Logger) {
	if l != nil {
		s.log = l
	}
}

// Limit returns the concurrency ceiling.
func (s *Scheduler) Limit() int { return s.limit }

// InFlight returns the number of executors currently running.
func (s *Scheduler) InFlight() int { return int(s.inFlight.Load()) }

// MaxInFlight returns the high-water mark of concurrently running executors.
func (s *Scheduler) MaxInFlight() int { return int(s.maxInFlight.Load()) }

// Run dispatches every target and returns the outcome stream. The channel is
// buffered for all targets, so a slow consumer never holds a slot, and it is
// closed once every target has reported. After ctx is cancelled no new
// executor starts; targets never dispatched are reported as Cancelled with
// reason "not started".
func (s *Scheduler) Run(ctx context.Context, targets []target.Target) <-chan session.Outcome {
	out := make(chan session.Outcome, len(targets))

	go func() {
		defer close(out)

		sem := make(chan struct{}, s.limit)
		var wg sync.WaitGroup

	dispatch:
		for i, t := range targets {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				s.skip(out, targets[i:])
				break dispatch
			}
			// select picks randomly when both cases are ready.
			if ctx.Err() != nil {
				<-sem
				s.skip(out, targets[i:])
				break dispatch
			}

			wg.Add(1)
			go func(t target.Target) {
				defer wg.Done()
				defer func() { <-sem }()
				out <- s.execute(ctx, t)
			}(t)
		}

		wg.Wait()
	}()

	return out
}

// execute runs one target while tracking the in-flight count. A panicking
// executor still yields an outcome.
func (s *Scheduler) execute(ctx context.Context, t target.Target) (o session.Outcome) {
	n := s.inFlight.Add(1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	defer s.inFlight.Add(-1)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("%s: executor panic: %v", t.Name, p)
			end := time.Now()
			o = session.Outcome{
				Target:   t,
				Status:   session.CommandFailed,
				Username: t.Username,
				Start:    start,
				End:      end,
				Duration: end.Sub(start),
				Reason:   fmt.Sprintf("internal error: %v", p),
			}
		}
	}()

	s.log.Debug("%s: dispatched (%d in flight)", t.Name, n)
	return s.exec.Execute(ctx, t)
}

func (s *Scheduler) skip(out chan<- session.Outcome, rest []target.Target) {
	now := time.Now()
	for _, t := range rest {
		out <- session.Outcome{
			Target:   t,
			Status:   session.Cancelled,
			Username: t.Username,
			Start:    now,
			End:      now,
			Reason:   "not started",
		}
	}
	if len(rest) > 0 {
		s.log.Debug("cancelled before dispatch: %d targets not started", len(rest))
	}
}
