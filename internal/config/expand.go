package config

import (
	"os"
	"path/filepath"
	"strings"
)

// envRefPrefix marks a value that should be read from the environment.
const envRefPrefix = "env:"

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// ExpandPath applies home-directory expansion and then $VAR / ${VAR}
// expansion. Unset variables are left in place rather than erased, so a
// typo shows up in the error about the path instead of silently pointing
// somewhere else.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	expanded := os.Expand(ExpandTilde(path), func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "${" + name + "}"
	})
	return expanded
}

// ResolveRef dereferences an env:NAME value. Other values are returned
// trimmed. A reference to an unset variable resolves to "".
func ResolveRef(value string) string {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, envRefPrefix) {
		return os.Getenv(strings.TrimSpace(v[len(envRefPrefix):]))
	}
	return v
}
