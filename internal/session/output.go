package session

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// DefaultMaxOutput caps each captured stream per target.
const DefaultMaxOutput = 1 << 20

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
// Writes never fail, so a chatty command can't stall its session.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped int64
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	if b.limit <= 0 {
		room = len(p)
	}
	if room >= len(p) {
		b.buf = append(b.buf, p...)
		return len(p), nil
	}
	if room > 0 {
		b.buf = append(b.buf, p[:room]...)
	}
	b.dropped += int64(len(p) - max(room, 0))
	return len(p), nil
}

// Bytes returns a copy of the kept bytes.
func (b *cappedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	return append([]byte(nil), b.buf...)
}

func (b *cappedBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// commandNotFoundPatterns match shell messages for a missing executable.
// Only consulted for exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
	regexp.MustCompile(`(?i)(\S+): not found`),
}

// missingCommand extracts the missing executable from stderr when the exit
// code says "command not found". ok is false for any other exit code.
func missingCommand(stderr []byte, exitCode int) (name string, ok bool) {
	if exitCode != 127 {
		return "", false
	}
	text := string(stderr)
	for _, pattern := range commandNotFoundPatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			return m[1], true
		}
	}
	return "", true
}

// exitReason describes a non-zero exit.
func exitReason(exitCode int, stderr []byte) string {
	if name, ok := missingCommand(stderr, exitCode); ok {
		if name != "" {
			return fmt.Sprintf("exit status 127: '%s' not found on remote PATH", name)
		}
		return "exit status 127: command not found on remote PATH"
	}

	reason := fmt.Sprintf("exit status %d", exitCode)
	if line := firstLine(stderr); line != "" {
		reason += ": " + line
	}
	return reason
}

func firstLine(b []byte) string {
	for _, l := range strings.Split(string(b), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			if r := []rune(l); len(r) > 200 {
				return string(r[:200])
			}
			return l
		}
	}
	return ""
}

func truncationNote(stdout, stderr *cappedBuffer) string {
	var parts []string
	if n := stdout.Dropped(); n > 0 {
		parts = append(parts, fmt.Sprintf("stdout truncated, %d bytes dropped", n))
	}
	if n := stderr.Dropped(); n > 0 {
		parts = append(parts, fmt.Sprintf("stderr truncated, %d bytes dropped", n))
	}
	return strings.Join(parts, "; ")
}
