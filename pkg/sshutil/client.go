package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/scatter/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DialerOptions configures a Dialer.
type DialerOptions struct {
	// StrictHostKeys verifies host keys against KnownHostsFile. When false no
	// verification happens and no known_hosts file is read.
	StrictHostKeys bool
	// KnownHostsFile defaults to ~/.ssh/known_hosts.
	KnownHostsFile string
	// ForwardAgent offers the local agent to remote commands, like ssh -A.
	ForwardAgent bool
	// Agent is the agent to forward. Nil means the one at SSH_AUTH_SOCK.
	Agent agent.Agent
}

// Dialer is the Connector backed by golang.org/x/crypto/ssh.
//
// Every credential attempt is its own handshake on a fresh TCP connection;
// the connection opened by Connect is used by the first attempt.
type Dialer struct {
	opts DialerOptions

	hostKeyOnce sync.Once
	hostKeyCB   ssh.HostKeyCallback
	hostKeyErr  error
}

// NewDialer returns a Dialer with the given options.
func NewDialer(opts DialerOptions) *Dialer {
	if opts.KnownHostsFile == "" {
		opts.KnownHostsFile = filepath.Join(homeDir(), ".ssh", "known_hosts")
	}
	return &Dialer{opts: opts}
}

// Connect opens a TCP connection to host:port within timeout.
func (d *Dialer) Connect(ctx context.Context, host string, port int, timeout time.Duration) (Session, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := d.dial(ctx, address, timeout)
	if err != nil {
		return nil, err
	}
	return &client{
		dialer:  d,
		host:    host,
		address: address,
		timeout: timeout,
		conn:    conn,
	}, nil
}

func (d *Dialer) dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	nd := &net.Dialer{Timeout: timeout}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach %s", address),
			suggestionForDialError(err))
	}
	return conn, nil
}

func (d *Dialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !d.opts.StrictHostKeys {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // host key checking is off by policy
	}
	d.hostKeyOnce.Do(func() {
		d.hostKeyCB, d.hostKeyErr = createHostKeyCallback(d.opts.KnownHostsFile)
	})
	return d.hostKeyCB, d.hostKeyErr
}

// forwardedAgent is the agent offered to remote commands, or nil when
// forwarding is off or there is no agent holding keys.
func (d *Dialer) forwardedAgent() agent.Agent {
	if !d.opts.ForwardAgent {
		return nil
	}
	if d.opts.Agent != nil {
		return d.opts.Agent
	}
	if len(agentSigners()) == 0 {
		return nil
	}
	return agentClient
}

// client is the Session returned by Dialer.
type client struct {
	dialer  *Dialer
	host    string
	address string
	timeout time.Duration

	mu        sync.Mutex
	conn      net.Conn // unused TCP connection waiting for a handshake
	ssh       *ssh.Client
	forwarded *ssh.Client // connection the agent channel handler is registered on
	closed    bool
}

// Authenticate runs one handshake with cred.
func (c *client) Authenticate(ctx context.Context, cred Credential) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrSSH, "Session is closed", "")
	}
	if c.ssh != nil {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	hostKeyCB, err := c.dialer.hostKeyCallback()
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to load known_hosts",
			"Check --known-hosts-file, or run with --known-hosts off.")
	}

	auth, err := authMethods(cred)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return err
	}

	if conn == nil {
		if conn, err = c.dialer.dial(ctx, c.address, c.timeout); err != nil {
			return err
		}
	}

	cfg := &ssh.ClientConfig{
		User:            cred.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCB,
		Timeout:         c.timeout,
	}

	sshClient, err := handshake(ctx, conn, c.address, cfg, c.timeout)
	if err != nil {
		conn.Close()
		return classifyHandshakeError(err, c.host, cred)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sshClient.Close()
		return errors.New(errors.ErrSSH, "Session is closed", "")
	}
	c.ssh = sshClient
	return nil
}

// handshake runs the SSH handshake on conn, bounded by timeout and ctx.
func handshake(ctx context.Context, conn net.Conn, address string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Close closes whichever connection is open.
func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.ssh != nil {
		err = c.ssh.Close()
		c.ssh = nil
	}
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
		c.conn = nil
	}
	return err
}

func (c *client) sshClient() (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ssh == nil {
		return nil, errors.New(errors.ErrSSH, "Not authenticated", "Call Authenticate before Run.")
	}
	return c.ssh, nil
}

// authMethods turns a Credential into x/crypto auth methods.
func authMethods(cred Credential) ([]ssh.AuthMethod, error) {
	switch cred.Method {
	case MethodPassword:
		password := cred.Secret
		return []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		}, nil

	case MethodKey:
		if cred.Secret != "" {
			keyAuth, err := keyFileAuth(cred.Secret)
			if err != nil {
				return nil, rejected(err, fmt.Sprintf("Can't use key %s", cred.Secret), keyFileSuggestion(err))
			}
			return []ssh.AuthMethod{keyAuth}, nil
		}

		var methods []ssh.AuthMethod
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			methods = append(methods, agentAuth)
		}
		for _, keyPath := range defaultKeyFiles() {
			if keyAuth, err := keyFileAuth(keyPath); err == nil {
				methods = append(methods, keyAuth)
			}
		}
		if len(methods) == 0 {
			return nil, rejected(stderrors.New("no agent keys or default key files"),
				"No SSH keys available",
				"Check your keys are loaded: ssh-add -l")
		}
		return methods, nil
	}

	return nil, errors.New(errors.ErrAuth, fmt.Sprintf("Unknown auth method %q", cred.Method), "")
}

// rejected wraps err so callers can tell "try the next credential" apart.
func rejected(err error, msg, suggestion string) error {
	return errors.WrapWithCode(fmt.Errorf("%w: %v", ErrAuthRejected, err), errors.ErrAuth, msg, suggestion)
}

func classifyHandshakeError(err error, host string, cred Credential) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var hostKeyErr *HostKeyMismatchError
	if stderrors.As(err, &hostKeyErr) {
		return errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
	}
	var keyErr *knownhosts.KeyError
	if stderrors.As(err, &keyErr) {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("%s isn't in known_hosts", host),
			fmt.Sprintf("Add it with: ssh-keyscan %s >> ~/.ssh/known_hosts", host))
	}

	if isAuthFailure(err) {
		return rejected(err,
			fmt.Sprintf("%s rejected %s auth for %s", host, cred.Method, cred.User),
			suggestionForHandshakeError(err))
	}

	return errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("SSH handshake with %s didn't go through", host),
		suggestionForHandshakeError(err))
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

func agentSigners() []ssh.Signer {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil {
		return nil
	}
	return signers
}

// sshAgentAuth returns an auth method using the SSH agent if it has keys.
// The agent connection is reused across connections.
func sshAgentAuth() ssh.AuthMethod {
	if len(agentSigners()) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// HasAmbientKeys reports whether a key attempt without an explicit identity
// has anything to offer: an agent holding keys, or a readable unencrypted
// default key in ~/.ssh.
func HasAmbientKeys() bool {
	if len(agentSigners()) > 0 {
		return true
	}
	for _, keyPath := range defaultKeyFiles() {
		if _, err := keyFileAuth(keyPath); err == nil {
			return true
		}
	}
	return false
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

func keyFileSuggestion(err error) string {
	var encErr *EncryptedKeyError
	if stderrors.As(err, &encErr) {
		if runtime.GOOS == "darwin" {
			return fmt.Sprintf("The key is encrypted. Load it into the agent: ssh-add --apple-use-keychain %s", encErr.Path)
		}
		return fmt.Sprintf("The key is encrypted. Load it into the agent: ssh-add %s", encErr.Path)
	}
	if os.IsNotExist(err) {
		return "Check the identity path in the inventory or --identity."
	}
	return "Make sure the file is a private key in OpenSSH or PEM format."
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "no such host") {
		return "The name doesn't resolve. Check the inventory entry or your ssh config."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return "Auth failed. Check the username and key or password."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the host was rebuilt, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
// A missing file is an error: strict checking against nothing would reject every host.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	knownHostsPath = expandPath(knownHostsPath)
	if _, err := os.Stat(knownHostsPath); err != nil {
		return nil, fmt.Errorf("known_hosts file %s: %w", knownHostsPath, err)
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
