package logger

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLog redirects the standard logger for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestEnvLogger_Debug(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     bool
	}{
		{name: "set", envValue: "1", want: true},
		{name: "any value", envValue: "true", want: true},
		{name: "empty", envValue: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			t.Setenv(DebugEnv, tt.envValue)

			NewEnvLogger("[session]").Debug("connect %s attempt %d", "web1", 2)

			if tt.want {
				assert.Contains(t, buf.String(), "[session] connect web1 attempt 2")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestEnableDebug(t *testing.T) {
	buf := captureLog(t)
	t.Setenv(DebugEnv, "")

	EnableDebug(true)
	t.Cleanup(func() { EnableDebug(false) })

	NewEnvLogger("[scatter]").Debug("peak concurrency %d", 4)
	assert.Contains(t, buf.String(), "[scatter] peak concurrency 4")
}

func TestEnvLogger_Levels(t *testing.T) {
	tests := []struct {
		name string
		log  func(l Logger)
		want string
	}{
		{name: "info", log: func(l Logger) { l.Info("%d hosts", 3) }, want: "[scatter] 3 hosts"},
		{name: "warn", log: func(l Logger) { l.Warn("sink %s failed", "save-dir") }, want: "[scatter] WARN: sink save-dir failed"},
		{name: "error", log: func(l Logger) { l.Error("boom") }, want: "[scatter] ERROR: boom"},
		{name: "percent in args", log: func(l Logger) { l.Info("%s", "100%") }, want: "[scatter] 100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			tt.log(NewEnvLogger("[scatter]"))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestNoopLogger(t *testing.T) {
	buf := captureLog(t)

	l := Noop()
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	assert.Empty(t, buf.String())
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()
	assert.False(t, l.HasLevel("warn"))

	l.Debug("retry %d", 1)
	l.Warn("ignoring ssh config: %s", "bad")

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, LogMessage{Level: "debug", Message: "retry 1"}, msgs[0])
	assert.Equal(t, LogMessage{Level: "warn", Message: "ignoring ssh config: bad"}, msgs[1])
	assert.True(t, l.HasLevel("warn"))
	assert.False(t, l.HasLevel("error"))

	l.Clear()
	assert.Empty(t, l.Messages())
}

func TestBufferLogger_Concurrent(t *testing.T) {
	l := NewBufferLogger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Debug("host-%d", n)
		}(i)
	}
	wg.Wait()

	assert.Len(t, l.Messages(), 50)
}

func TestDefault(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(original) })
	require.NotNil(t, original)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Warn("match blocks ignored")

	assert.Same(t, buf, Default())
	assert.True(t, buf.HasLevel("warn"))
}
