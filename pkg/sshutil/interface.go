package sshutil

import (
	"context"
	stderrors "errors"
	"io"
	"time"
)

// ErrAuthRejected marks a credential the server refused. Anything else
// coming out of Authenticate (host key trouble, a dropped connection) means
// trying further credentials is pointless.
var ErrAuthRejected = stderrors.New("authentication rejected")

// AuthMethod says how a Credential proves identity.
type AuthMethod string

const (
	// MethodKey authenticates with a private key file, or with the ambient
	// agent and default keys when Secret is empty.
	MethodKey AuthMethod = "key"
	// MethodPassword authenticates with password / keyboard-interactive.
	MethodPassword AuthMethod = "password"
)

// Credential is one authentication attempt against a host.
type Credential struct {
	Method AuthMethod
	User   string
	// Secret is the identity file path for MethodKey and the password for
	// MethodPassword.
	Secret string
}

// Connector opens transport-level connections to remote hosts.
//
// Connect only proves the host is reachable. Authentication happens
// separately on the returned Session so a caller can walk a list of
// credentials without re-running connection retries.
type Connector interface {
	Connect(ctx context.Context, host string, port int, timeout time.Duration) (Session, error)
}

// Session is a connection to one host.
type Session interface {
	// Authenticate performs an SSH handshake with cred. A refused credential
	// returns an error wrapping ErrAuthRejected and the session stays usable
	// for the next attempt.
	Authenticate(ctx context.Context, cred Credential) error

	// Run executes cmd on the authenticated connection, streaming output to
	// the writers. A non-zero exit is reported through exitCode with a nil
	// error. If ctx ends first the remote process is killed and the returned
	// error wraps ctx.Err().
	Run(ctx context.Context, cmd string, pty bool, stdout, stderr io.Writer) (exitCode int, err error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}
