package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/scatter/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// ptyModes is what we request when a pseudo-terminal is wanted: no echo,
// so captured output doesn't contain the command line.
var ptyModes = ssh.TerminalModes{
	ssh.ECHO:          0,
	ssh.TTY_OP_ISPEED: 14400,
	ssh.TTY_OP_OSPEED: 14400,
}

// killGrace is how long an interrupted Run waits for the SIGKILL request to
// go out before dropping the connection.
const killGrace = 250 * time.Millisecond

// Run executes cmd and streams its output to stdout and stderr.
//
// When ctx is done Run returns promptly even if the host has gone silent:
// the remote process is sent SIGKILL and the connection is closed, which
// unblocks every pending channel operation. The Session is unusable after an
// interrupted Run.
func (c *client) Run(ctx context.Context, cmd string, pty bool, stdout, stderr io.Writer) (int, error) {
	sshClient, err := c.sshClient()
	if err != nil {
		return -1, err
	}

	var current atomic.Pointer[ssh.Session]
	stop := make(chan struct{})
	defer close(stop)
	go c.interruptOnDone(ctx, stop, &current)

	session, err := sshClient.NewSession()
	if err != nil {
		if ctx.Err() != nil {
			return -1, interrupted(ctx)
		}
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed by the server.")
	}
	defer session.Close()
	current.Store(session)

	if fwd := c.dialer.forwardedAgent(); fwd != nil {
		c.forwardAgent(sshClient, session, fwd)
	}

	if pty {
		if err := session.RequestPty("xterm", 40, 80, ptyModes); err != nil {
			if ctx.Err() != nil {
				return -1, interrupted(ctx)
			}
			return -1, errors.WrapWithCode(err, errors.ErrSSH,
				"Failed to allocate PTY",
				"The remote host may not support pseudo-terminals. Try without --pty.")
		}
	}

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Start(cmd); err != nil {
		if ctx.Err() != nil {
			return -1, interrupted(ctx)
		}
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			"Failed to start command",
			"The server refused the exec request.")
	}

	err = session.Wait()
	if err != nil && ctx.Err() != nil {
		return -1, interrupted(ctx)
	}
	return exitStatus(err)
}

// interruptOnDone waits for ctx or stop. On ctx it sends SIGKILL to the
// running command, if any, and closes the connection.
func (c *client) interruptOnDone(ctx context.Context, stop <-chan struct{}, current *atomic.Pointer[ssh.Session]) {
	select {
	case <-stop:
		return
	case <-ctx.Done():
	}

	if session := current.Load(); session != nil {
		// Not every server honours signals, and a silent host never
		// acknowledges the write.
		sent := make(chan struct{})
		go func() {
			_ = session.Signal(ssh.SIGKILL)
			close(sent)
		}()
		select {
		case <-sent:
		case <-time.After(killGrace):
		}
	}
	_ = c.Close()
}

// forwardAgent offers fwd to the remote command. The channel handler is
// registered once per connection; the per-session request is best effort.
func (c *client) forwardAgent(sshClient *ssh.Client, session *ssh.Session, fwd agent.Agent) {
	c.mu.Lock()
	register := c.forwarded != sshClient
	c.forwarded = sshClient
	c.mu.Unlock()

	if register {
		if err := agent.ForwardToAgent(sshClient, fwd); err != nil {
			emitWarning(fmt.Sprintf("agent forwarding to %s: %v", c.host, err))
			return
		}
	}
	if err := agent.RequestAgentForwarding(session); err != nil {
		emitWarning(fmt.Sprintf("%s refused agent forwarding: %v", c.host, err))
	}
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("command interrupted: %w", ctx.Err())
}

// exitStatus maps session.Wait's error onto an exit code. A missing exit
// status (the connection dropped, or the process died by a signal without
// the server reporting it) is an error, not a code.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		// Death by signal arrives as 128+N.
		return exitErr.ExitStatus(), nil
	}

	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			"Command ended without an exit status",
			"The connection may have dropped mid-command.")
	}

	return -1, errors.WrapWithCode(err, errors.ErrExec,
		"Command failed to run",
		"Check the remote host is healthy.")
}
