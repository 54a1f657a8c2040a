package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/scatter/pkg/sshutil"
)

// HostScript describes how a fake host behaves.
type HostScript struct {
	// ConnectErrs are returned by successive Connect calls; once exhausted
	// connects succeed.
	ConnectErrs []error
	// ConnectDelay is slept (ctx-aware) before every Connect returns.
	ConnectDelay time.Duration

	// Accept decides which credentials the host takes. Nil accepts anything.
	Accept func(cred sshutil.Credential) bool
	// AuthErr, when set, is returned from every Authenticate instead of a
	// rejection (host key failures and the like).
	AuthErr error

	Stdout   string
	Stderr   string
	ExitCode int
	// RunErr is returned from Run after output is written.
	RunErr error
	// RunDelay is slept (ctx-aware) before output is written.
	RunDelay time.Duration
	// RunPanic makes Run panic with this value.
	RunPanic interface{}
}

// RunCall records one Run invocation.
type RunCall struct {
	Command string
	PTY     bool
}

// FakeConnector is a scripted sshutil.Connector. Hosts without a script
// accept any credential and run commands successfully with no output.
type FakeConnector struct {
	mu       sync.Mutex
	scripts  map[string]HostScript
	connects map[string]int
	auths    map[string][]sshutil.Credential
	runs     map[string][]RunCall

	open   int32
	closed int32
}

// NewFakeConnector returns an empty fake.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		scripts:  make(map[string]HostScript),
		connects: make(map[string]int),
		auths:    make(map[string][]sshutil.Credential),
		runs:     make(map[string][]RunCall),
	}
}

// Script sets the behaviour of host.
func (f *FakeConnector) Script(host string, s HostScript) *FakeConnector {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[host] = s
	return f
}

// Connect implements sshutil.Connector.
func (f *FakeConnector) Connect(ctx context.Context, host string, port int, _ time.Duration) (sshutil.Session, error) {
	f.mu.Lock()
	n := f.connects[host]
	f.connects[host] = n + 1
	script := f.scripts[host]
	f.mu.Unlock()

	if err := sleep(ctx, script.ConnectDelay); err != nil {
		return nil, err
	}
	if n < len(script.ConnectErrs) && script.ConnectErrs[n] != nil {
		return nil, script.ConnectErrs[n]
	}

	atomic.AddInt32(&f.open, 1)
	return &fakeSession{fake: f, host: host, script: script}, nil
}

// ConnectCount returns how many times Connect was called for host.
func (f *FakeConnector) ConnectCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects[host]
}

// TotalConnects returns the number of Connect calls across all hosts.
func (f *FakeConnector) TotalConnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.connects {
		total += n
	}
	return total
}

// Auths returns the credentials tried against host, in order.
func (f *FakeConnector) Auths(host string) []sshutil.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sshutil.Credential(nil), f.auths[host]...)
}

// Runs returns the commands run on host.
func (f *FakeConnector) Runs(host string) []RunCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RunCall(nil), f.runs[host]...)
}

// OpenSessions returns sessions connected but not yet closed.
func (f *FakeConnector) OpenSessions() int {
	return int(atomic.LoadInt32(&f.open) - atomic.LoadInt32(&f.closed))
}

type fakeSession struct {
	fake   *FakeConnector
	host   string
	script HostScript

	authed    bool
	closeOnce sync.Once
}

func (s *fakeSession) Authenticate(ctx context.Context, cred sshutil.Credential) error {
	s.fake.mu.Lock()
	s.fake.auths[s.host] = append(s.fake.auths[s.host], cred)
	s.fake.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.script.AuthErr != nil {
		return s.script.AuthErr
	}
	if s.script.Accept != nil && !s.script.Accept(cred) {
		return fmt.Errorf("%s: %w", s.host, sshutil.ErrAuthRejected)
	}
	s.authed = true
	return nil
}

func (s *fakeSession) Run(ctx context.Context, cmd string, pty bool, stdout, stderr io.Writer) (int, error) {
	s.fake.mu.Lock()
	s.fake.runs[s.host] = append(s.fake.runs[s.host], RunCall{Command: cmd, PTY: pty})
	s.fake.mu.Unlock()

	if !s.authed {
		return -1, errors.New("not authenticated")
	}
	if s.script.RunPanic != nil {
		panic(s.script.RunPanic)
	}
	if err := sleep(ctx, s.script.RunDelay); err != nil {
		return -1, fmt.Errorf("command interrupted: %w", err)
	}

	if s.script.Stdout != "" {
		_, _ = io.WriteString(stdout, s.script.Stdout)
	}
	if s.script.Stderr != "" {
		_, _ = io.WriteString(stderr, s.script.Stderr)
	}
	if s.script.RunErr != nil {
		return -1, s.script.RunErr
	}
	return s.script.ExitCode, nil
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() {
		atomic.AddInt32(&s.fake.closed, 1)
	})
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
