// Package logger provides a simple logging interface for scatter components.
// The engine logs phase transitions and retries through it without being
// coupled to a specific logging implementation.
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "SCATTER_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// forceDebug turns debug output on regardless of the environment (-vv).
var forceDebug atomic.Bool

// EnableDebug forces debug output for every env logger in the process.
func EnableDebug(on bool) {
	forceDebug.Store(on)
}

// envLogger logs through the standard log package. Debug messages are only
// printed when SCATTER_DEBUG is set or EnableDebug(true) was called.
type envLogger struct {
	prefix string
}

// NewEnvLogger creates a logger that respects SCATTER_DEBUG. The prefix,
// e.g. "[session]", starts every line.
func NewEnvLogger(prefix string) Logger {
	return &envLogger{prefix: prefix}
}

// debugEnabled reports whether debug lines are printed.
func debugEnabled() bool {
	return forceDebug.Load() || os.Getenv(DebugEnv) != ""
}

// logf writes one line; tag marks warnings and errors.
func (l *envLogger) logf(tag, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if tag != "" {
		msg = tag + ": " + msg
	}
	log.Print(l.prefix + " " + msg)
}

func (l *envLogger) Debug(format string, args ...interface{}) {
	if debugEnabled() {
		l.logf("", format, args...)
	}
}

func (l *envLogger) Info(format string, args ...interface{})  { l.logf("", format, args...) }
func (l *envLogger) Warn(format string, args ...interface{})  { l.logf("WARN", format, args...) }
func (l *envLogger) Error(format string, args ...interface{}) { l.logf("ERROR", format, args...) }

// noopLogger discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// Safe for use from many goroutines, since executors log concurrently.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args...) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args...) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args...) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args...) }

// Messages returns a copy of the captured messages.
func (l *BufferLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewEnvLogger("[scatter]")
)

// Default returns the process-wide logger used where no logger is passed
// in, such as ssh config warnings.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}
