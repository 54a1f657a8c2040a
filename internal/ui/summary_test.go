package ui

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0.00s"},
		{50 * time.Millisecond, "0.05s"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{90 * time.Second, "1m30.0s"},
		{2*time.Minute + 5500*time.Millisecond, "2m5.5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestCountsLine(t *testing.T) {
	line := CountsLine(2, 1, 3, 1200*time.Millisecond)
	assert.Contains(t, line, "2 ok")
	assert.Contains(t, line, "1 failed")
	assert.Contains(t, line, "3 total")
	assert.Contains(t, line, "(1.2s)")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f), "regular files are not terminals")
	assert.Equal(t, 80, TerminalWidth(f, 80))
	assert.Equal(t, 100, TerminalWidth(&bytes.Buffer{}, 100))
}
