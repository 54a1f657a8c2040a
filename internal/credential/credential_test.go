package credential

import (
	"testing"

	"github.com/rileyhilliard/scatter/pkg/sshutil"
	"github.com/stretchr/testify/assert"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want []Attempt
	}{
		{
			name: "nothing available",
			in:   Input{Username: "root"},
			want: nil,
		},
		{
			name: "identity only",
			in:   Input{Username: "root", Identity: "/k/id"},
			want: []Attempt{{Key, "root", "/k/id"}},
		},
		{
			name: "agent only",
			in:   Input{Username: "root", AgentAvailable: true},
			want: []Attempt{{Key, "root", ""}},
		},
		{
			name: "identity wins over agent",
			in:   Input{Username: "root", Identity: "/k/id", AgentAvailable: true},
			want: []Attempt{{Key, "root", "/k/id"}},
		},
		{
			name: "password only",
			in:   Input{Username: "root", Password: "pw"},
			want: []Attempt{{Password, "root", "pw"}},
		},
		{
			name: "key before password",
			in:   Input{Usernames: []string{"u1", "u2"}, Identity: "/k/id", Password: "pw"},
			want: []Attempt{
				{Key, "u1", "/k/id"},
				{Key, "u2", "/k/id"},
				{Password, "u1", "pw"},
				{Password, "u2", "pw"},
			},
		},
		{
			name: "cartesian, username outer",
			in:   Input{Usernames: []string{"u1", "u2"}, Passwords: []string{"p1", "p2", "p3"}},
			want: []Attempt{
				{Password, "u1", "p1"},
				{Password, "u1", "p2"},
				{Password, "u1", "p3"},
				{Password, "u2", "p1"},
				{Password, "u2", "p2"},
				{Password, "u2", "p3"},
			},
		},
		{
			name: "password list replaces single password",
			in:   Input{Username: "root", Password: "single", Passwords: []string{"a", "b"}},
			want: []Attempt{{Password, "root", "a"}, {Password, "root", "b"}},
		},
		{
			name: "username list replaces single username",
			in:   Input{Username: "root", Usernames: []string{"admin"}, AgentAvailable: true},
			want: []Attempt{{Key, "admin", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plan(tt.in))
		})
	}
}

func TestPlan_Deterministic(t *testing.T) {
	in := Input{
		Usernames:      []string{"a", "b", "c"},
		Passwords:      []string{"1", "2"},
		AgentAvailable: true,
	}

	first := Plan(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Plan(in))
	}
	assert.Len(t, first, 3+3*2)
}

func TestPlan_KeyThenPasswordOrder(t *testing.T) {
	got := Plan(Input{Usernames: []string{"u1", "u2"}, Identity: "/id", Password: "pw"})

	// Every key attempt precedes every password attempt.
	seenPassword := false
	for _, a := range got {
		if a.Method == Password {
			seenPassword = true
		}
		if a.Method == Key {
			assert.False(t, seenPassword, "key attempt after a password attempt")
		}
	}
}

func TestAttempt_String(t *testing.T) {
	assert.Equal(t, "key root (agent)", Attempt{Key, "root", ""}.String())
	assert.Equal(t, "key root (/k/id)", Attempt{Key, "root", "/k/id"}.String())

	s := Attempt{Password, "root", "hunter2"}.String()
	assert.Equal(t, "password root (***)", s)
	assert.NotContains(t, s, "hunter2")
}

func TestAttempt_Credential(t *testing.T) {
	c := Attempt{Password, "root", "pw"}.Credential()
	assert.Equal(t, sshutil.Credential{Method: sshutil.MethodPassword, User: "root", Secret: "pw"}, c)

	c = Attempt{Key, "deploy", "/id"}.Credential()
	assert.Equal(t, sshutil.Credential{Method: sshutil.MethodKey, User: "deploy", Secret: "/id"}, c)
}
