package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
	"github.com/rileyhilliard/scatter/pkg/sshutil"
	sshtest "github.com/rileyhilliard/scatter/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func makeTargets(n int) []target.Target {
	targets := make([]target.Target, n)
	for i := range targets {
		name := fmt.Sprintf("host-%02d", i)
		targets[i] = target.Target{
			Index:          i,
			Name:           name,
			Address:        name,
			Port:           22,
			Username:       "root",
			Password:       "pw",
			ConnectTimeout: time.Second,
			RetryAttempts:  1,
			Command:        "uptime",
		}
	}
	return targets
}

// funcExecutor adapts a function to TargetExecutor.
type funcExecutor func(ctx context.Context, t target.Target) session.Outcome

func (f funcExecutor) Execute(ctx context.Context, t target.Target) session.Outcome {
	return f(ctx, t)
}

func okOutcome(t target.Target) session.Outcome {
	code := 0
	now := time.Now()
	return session.Outcome{Target: t, Status: session.Ok, ExitCode: &code, Start: now, End: now}
}

func drain(ch <-chan session.Outcome) []session.Outcome {
	var out []session.Outcome
	for o := range ch {
		out = append(out, o)
	}
	return out
}

func TestScheduler_RespectsLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	var running, peak atomic.Int64
	exec := funcExecutor(func(_ context.Context, tg target.Target) session.Outcome {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return okOutcome(tg)
	})

	s := NewScheduler(exec, 3)
	outcomes := drain(s.Run(context.Background(), makeTargets(20)))

	assert.Len(t, outcomes, 20)
	assert.LessOrEqual(t, peak.Load(), int64(3), "executor saw more than the limit")
	assert.LessOrEqual(t, s.MaxInFlight(), 3)
	assert.GreaterOrEqual(t, s.MaxInFlight(), 1)
	assert.Equal(t, 0, s.InFlight())
}

func TestScheduler_LimitLargerThanTargets(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := funcExecutor(func(_ context.Context, tg target.Target) session.Outcome { return okOutcome(tg) })
	s := NewScheduler(exec, 50)
	assert.Len(t, drain(s.Run(context.Background(), makeTargets(4))), 4)
	assert.LessOrEqual(t, s.MaxInFlight(), 4)
}

func TestScheduler_ZeroLimitMeansOne(t *testing.T) {
	s := NewScheduler(nil, 0)
	assert.Equal(t, 1, s.Limit())
}

func TestScheduler_NoTargets(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(funcExecutor(nil), 4)
	assert.Empty(t, drain(s.Run(context.Background(), nil)))
}

func TestScheduler_ExactlyOneOutcomePerTarget(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := funcExecutor(func(_ context.Context, tg target.Target) session.Outcome {
		time.Sleep(time.Duration(tg.Index%4) * time.Millisecond)
		return okOutcome(tg)
	})

	targets := makeTargets(60)
	outcomes := drain(NewScheduler(exec, 7).Run(context.Background(), targets))

	seen := make(map[string]int)
	for _, o := range outcomes {
		seen[o.Target.Name]++
	}
	require.Len(t, seen, len(targets))
	for name, n := range seen {
		assert.Equal(t, 1, n, "%s reported %d times", name, n)
	}
}

func TestScheduler_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := funcExecutor(func(ctx context.Context, tg target.Target) session.Outcome {
		<-ctx.Done()
		now := time.Now()
		return session.Outcome{Target: tg, Status: session.Cancelled, Reason: "cancelled while executing", Start: now, End: now}
	})

	s := NewScheduler(exec, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Run(ctx, makeTargets(5))
	require.Eventually(t, func() bool { return s.InFlight() == 2 }, time.Second, time.Millisecond)
	cancel()

	outcomes := drain(ch)
	require.Len(t, outcomes, 5)

	reasons := make(map[string]int)
	for _, o := range outcomes {
		assert.Equal(t, session.Cancelled, o.Status)
		reasons[o.Reason]++
	}
	assert.Equal(t, 2, reasons["cancelled while executing"])
	assert.Equal(t, 3, reasons["not started"])
	assert.Equal(t, 2, s.MaxInFlight())
}

func TestScheduler_CancelledBeforeRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	exec := funcExecutor(func(_ context.Context, tg target.Target) session.Outcome {
		calls.Add(1)
		return okOutcome(tg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := drain(NewScheduler(exec, 3).Run(ctx, makeTargets(4)))
	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.Equal(t, session.Cancelled, o.Status)
		assert.Equal(t, "not started", o.Reason)
	}
	assert.Zero(t, calls.Load())
}

func TestScheduler_PanickingExecutorStillReports(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := funcExecutor(func(_ context.Context, tg target.Target) session.Outcome {
		if tg.Index == 1 {
			panic("boom")
		}
		return okOutcome(tg)
	})

	outcomes := drain(NewScheduler(exec, 2).Run(context.Background(), makeTargets(3)))
	require.Len(t, outcomes, 3)

	var failed []session.Outcome
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "host-01", failed[0].Target.Name)
	assert.Equal(t, session.CommandFailed, failed[0].Status)
	assert.Equal(t, "internal error: boom", failed[0].Reason)
}

func TestScheduler_CompletionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	exec := funcExecutor(func(_ context.Context, tg target.Target) session.Outcome {
		if tg.Index == 0 {
			<-release
		}
		return okOutcome(tg)
	})

	ch := NewScheduler(exec, 2).Run(context.Background(), makeTargets(2))
	first := <-ch
	assert.Equal(t, "host-01", first.Target.Name, "fast host reported before slow one")
	close(release)
	second := <-ch
	assert.Equal(t, "host-00", second.Target.Name)
	_, open := <-ch
	assert.False(t, open)
}

// Three targets under a limit of two, where the second host rejects every
// credential.
func TestScheduler_MixedRunScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := sshtest.NewFakeConnector().
		Script("host-01", sshtest.HostScript{Accept: func(sshutil.Credential) bool { return false }})
	exec := session.NewExecutor(fake, false)

	s := NewScheduler(exec, 2)
	sum, err := NewAggregator().Consume(context.Background(), s.Run(context.Background(), makeTargets(3)))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.OK)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.ExitCode())
	assert.LessOrEqual(t, s.MaxInFlight(), 2)

	for _, o := range sum.Outcomes {
		if o.Target.Name == "host-01" {
			assert.Equal(t, session.AuthFailed, o.Status)
		} else {
			assert.Equal(t, session.Ok, o.Status)
		}
	}
	assert.Equal(t, 0, fake.OpenSessions())
}

func TestScheduler_ConcurrentRunsShareNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := funcExecutor(func(_ context.Context, tg target.Target) session.Outcome { return okOutcome(tg) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, drain(NewScheduler(exec, 2).Run(context.Background(), makeTargets(10))), 10)
		}()
	}
	wg.Wait()
}
