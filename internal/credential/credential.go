// Package credential decides which credentials are tried against a host,
// and in what order.
package credential

import (
	"fmt"

	"github.com/rileyhilliard/scatter/pkg/sshutil"
)

// Method is how an attempt authenticates.
type Method string

const (
	// Key authenticates with an identity file, or with the ambient agent
	// and default keys when the attempt has no secret.
	Key Method = "key"
	// Password authenticates with a password.
	Password Method = "password"
)

// Attempt is one credential to try.
type Attempt struct {
	Method   Method
	Username string
	// Secret is the identity path for Key attempts (empty means the agent)
	// and the password for Password attempts.
	Secret string
}

// String describes the attempt without revealing a password.
func (a Attempt) String() string {
	switch a.Method {
	case Key:
		if a.Secret == "" {
			return fmt.Sprintf("key %s (agent)", a.Username)
		}
		return fmt.Sprintf("key %s (%s)", a.Username, a.Secret)
	case Password:
		return fmt.Sprintf("password %s (***)", a.Username)
	}
	return fmt.Sprintf("%s %s", a.Method, a.Username)
}

// Credential converts the attempt for the transport.
func (a Attempt) Credential() sshutil.Credential {
	m := sshutil.MethodKey
	if a.Method == Password {
		m = sshutil.MethodPassword
	}
	return sshutil.Credential{Method: m, User: a.Username, Secret: a.Secret}
}

// Input is everything Plan looks at. It carries no hidden state: the same
// Input always yields the same plan.
type Input struct {
	// Username is the resolved single username.
	Username string
	// Usernames, when non-empty, replaces Username (file order).
	Usernames []string

	// Identity is an explicit private key path.
	Identity string
	// AgentAvailable reports that key auth without an explicit identity has
	// something to offer.
	AgentAvailable bool

	// Password is the resolved single password.
	Password string
	// Passwords, when non-empty, replaces Password (file order).
	Passwords []string
}

// Plan returns the ordered attempts for in. Key attempts come first, one
// per username; then password attempts over usernames x passwords with the
// username as the outer loop. An empty plan means the host can only fail
// authentication.
func Plan(in Input) []Attempt {
	usernames := in.Usernames
	if len(usernames) == 0 {
		usernames = []string{in.Username}
	}

	passwords := in.Passwords
	if len(passwords) == 0 && in.Password != "" {
		passwords = []string{in.Password}
	}

	var attempts []Attempt

	if in.Identity != "" || in.AgentAvailable {
		for _, u := range usernames {
			attempts = append(attempts, Attempt{Method: Key, Username: u, Secret: in.Identity})
		}
	}

	for _, u := range usernames {
		for _, p := range passwords {
			attempts = append(attempts, Attempt{Method: Password, Username: u, Secret: p})
		}
	}

	return attempts
}
