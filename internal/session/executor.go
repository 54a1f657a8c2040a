package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/rileyhilliard/scatter/internal/logger"
	"github.com/rileyhilliard/scatter/internal/target"
	"github.com/rileyhilliard/scatter/pkg/sshutil"
)

// Executor drives targets through their state machine. One Executor is
// shared by every target of a run; it holds no per-target state.
type Executor struct {
	Connector sshutil.Connector
	// AgentAvailable feeds credential.Plan: key attempts without an
	// explicit identity are only planned when this is set.
	AgentAvailable bool
	Backoff        Backoff
	// MaxOutput caps each captured stream; 0 means DefaultMaxOutput.
	MaxOutput int
	Observer  Observer
	Logger    logger.Logger

	// sleep is swapped in tests to record backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor returns an Executor with the default backoff and output cap.
func NewExecutor(connector sshutil.Connector, agentAvailable bool) *Executor {
	return &Executor{
		Connector:      connector,
		AgentAvailable: agentAvailable,
		Backoff:        DefaultBackoff(),
		MaxOutput:      DefaultMaxOutput,
		Logger:         logger.Noop(),
	}
}

// run carries the mutable bookkeeping of one Execute call.
type run struct {
	t        target.Target
	start    time.Time
	state    State
	attempts int
	username string
}

func (r *run) finish(status Status, exitCode *int, stdout, stderr []byte, reason string) Outcome {
	end := time.Now()
	return Outcome{
		Target:   r.t,
		Status:   status,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Attempts: r.attempts,
		Username: r.username,
		Start:    r.start,
		End:      end,
		Duration: end.Sub(r.start),
		Reason:   reason,
	}
}

// Execute runs t to completion and returns its outcome. It never panics and
// never returns without an outcome; every session it opens is closed.
func (e *Executor) Execute(ctx context.Context, t target.Target) (out Outcome) {
	r := &run{t: t, start: time.Now(), state: Pending, username: t.Username}

	defer e.observe(t, Completed)
	defer func() {
		if p := recover(); p != nil {
			e.log().Error("%s: panic in %s: %v", t.Name, r.state, p)
			out = r.finish(r.state.failure(), nil, nil, nil, fmt.Sprintf("internal error: %v", p))
		}
	}()

	if err := ctx.Err(); err != nil {
		return r.finish(Cancelled, nil, nil, nil, "cancelled before start")
	}

	e.setState(r, Connecting)
	sess, err := e.connect(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			return r.finish(Cancelled, nil, nil, nil, "cancelled while connecting")
		}
		return r.finish(ConnectFailed, nil, nil, nil, errors.Reason(err))
	}
	defer sess.Close()

	e.setState(r, Authenticating)
	if err := e.authenticate(ctx, r, sess); err != nil {
		if ctx.Err() != nil {
			return r.finish(Cancelled, nil, nil, nil, "cancelled while authenticating")
		}
		return r.finish(AuthFailed, nil, nil, nil, errors.Reason(err))
	}

	e.setState(r, Executing)
	return e.execute(ctx, r, sess)
}

func (e *Executor) connect(ctx context.Context, r *run) (sshutil.Session, error) {
	t := r.t
	attempts := t.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		r.attempts = i
		sess, err := e.Connector.Connect(ctx, t.Address, t.Port, t.ConnectTimeout)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i == attempts {
			break
		}

		delay := e.Backoff.Delay(i)
		e.log().Debug("%s: connect attempt %d/%d failed, retrying in %s: %s", t.Name, i, attempts, delay, errors.Reason(err))
		if err := e.sleepFor(ctx, delay); err != nil {
			return nil, err
		}
	}

	if attempts > 1 {
		return nil, errors.WrapWithCode(lastErr, errors.ErrSSH,
			fmt.Sprintf("%d connection attempts failed", attempts), "")
	}
	return nil, lastErr
}

func (e *Executor) authenticate(ctx context.Context, r *run, sess sshutil.Session) error {
	plan := r.t.Attempts(e.AgentAvailable)
	if len(plan) == 0 {
		return errors.New(errors.ErrAuth,
			"no credentials to try (no identity, agent key or password)", "")
	}

	var lastErr error
	for i, a := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.username = a.Username

		err := sess.Authenticate(ctx, a.Credential())
		if err == nil {
			e.log().Debug("%s: accepted %s", r.t.Name, a)
			return nil
		}
		lastErr = err
		if !stderrors.Is(err, sshutil.ErrAuthRejected) {
			return errors.WrapWithCode(err, errors.ErrAuth, a.String(), "")
		}
		e.log().Debug("%s: attempt %d/%d rejected: %s", r.t.Name, i+1, len(plan), a)
	}

	return errors.WrapWithCode(lastErr, errors.ErrAuth,
		fmt.Sprintf("all %d credential attempts rejected (last: %s)", len(plan), plan[len(plan)-1]), "")
}

func (e *Executor) execute(ctx context.Context, r *run, sess sshutil.Session) Outcome {
	t := r.t
	limit := e.MaxOutput
	if limit == 0 {
		limit = DefaultMaxOutput
	}
	stdout := newCappedBuffer(limit)
	stderr := newCappedBuffer(limit)

	runCtx := ctx
	if t.CommandTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.CommandTimeout)
		defer cancel()
	}

	code, err := sess.Run(runCtx, t.Command, t.PTY, stdout, stderr)

	note := truncationNote(stdout, stderr)
	withNote := func(reason string) string {
		if note == "" {
			return reason
		}
		if reason == "" {
			return note
		}
		return reason + "; " + note
	}

	if err != nil {
		switch {
		case ctx.Err() != nil:
			reason := errors.New(errors.ErrCancelled, "cancelled while executing", "")
			return r.finish(Cancelled, nil, stdout.Bytes(), stderr.Bytes(), withNote(errors.Reason(reason)))
		case runCtx.Err() == context.DeadlineExceeded:
			// Release the connection before the outcome is reported.
			sess.Close()
			reason := errors.New(errors.ErrTimeout, fmt.Sprintf("command timed out after %s", t.CommandTimeout), "")
			return r.finish(CommandTimedOut, nil, stdout.Bytes(), stderr.Bytes(), withNote(errors.Reason(reason)))
		default:
			return r.finish(CommandFailed, nil, stdout.Bytes(), stderr.Bytes(), withNote(errors.Reason(err)))
		}
	}

	exitCode := code
	if code == 0 {
		return r.finish(Ok, &exitCode, stdout.Bytes(), stderr.Bytes(), withNote(""))
	}
	return r.finish(CommandFailed, &exitCode, stdout.Bytes(), stderr.Bytes(), withNote(exitReason(code, stderr.Bytes())))
}

func (e *Executor) setState(r *run, s State) {
	r.state = s
	e.observe(r.t, s)
}

func (e *Executor) observe(t target.Target, s State) {
	if e.Observer != nil {
		e.Observer.StateChanged(t, s)
	}
}

func (e *Executor) sleepFor(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		return e.sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func (e *Executor) log() logger.Logger {
	if e.Logger == nil {
		return logger.Noop()
	}
	return e.Logger
}
