package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	remainingSecs := secs - float64(mins)*60
	return fmt.Sprintf("%dm%.1fs", mins, remainingSecs)
}

// CountsLine renders the aggregate result line:
// "✓ 2 ok  ✗ 1 failed  ● 3 total  (1.2s)".
func CountsLine(ok, failed, total int, d time.Duration) string {
	failedStyle := MutedStyle()
	if failed > 0 {
		failedStyle = ErrorStyle()
	}
	return fmt.Sprintf("%s %d ok  %s %d failed  %s %d total  %s",
		SuccessStyle().Render(SymbolSuccess), ok,
		failedStyle.Render(SymbolFail), failed,
		MutedStyle().Render(SymbolComplete), total,
		MutedStyle().Render(fmt.Sprintf("(%s)", FormatDuration(d))),
	)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of w, or fallback when w is not a terminal.
func TerminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok {
		return fallback
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}
