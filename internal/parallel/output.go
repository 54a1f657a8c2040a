package parallel

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/ui"
)

// StreamPrinter is the non-interactive display sink: one line per completed
// host, optionally followed by its captured output with a [host] prefix.
type StreamPrinter struct {
	w          io.Writer
	showOutput bool
	showStderr bool

	mu    sync.Mutex
	done  int
	total int

	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
}

// StreamOptions configures a StreamPrinter.
type StreamOptions struct {
	// Total is the number of targets, used for the [n/total] counter.
	Total      int
	ShowOutput bool
	ShowStderr bool
}

// NewStreamPrinter creates a stream printer writing to w.
func NewStreamPrinter(w io.Writer, opts StreamOptions) *StreamPrinter {
	return &StreamPrinter{
		w:          w,
		showOutput: opts.ShowOutput,
		showStderr: opts.ShowStderr,
		total:      opts.Total,

		successStyle: lipgloss.NewStyle().Foreground(ui.ColorSuccess),
		errorStyle:   lipgloss.NewStyle().Foreground(ui.ColorError),
		warnStyle:    ui.WarningStyle(),
		mutedStyle:   lipgloss.NewStyle().Foreground(ui.ColorMuted),
	}
}

func (p *StreamPrinter) String() string { return "stream printer" }

// Record prints the completion line for o.
func (p *StreamPrinter) Record(o session.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++

	symbol := ui.SymbolSuccess
	style := p.successStyle
	switch {
	case o.Status == session.Cancelled:
		symbol = ui.SymbolSkipped
		style = p.warnStyle
	case !o.OK():
		symbol = ui.SymbolFail
		style = p.errorStyle
	}

	line := fmt.Sprintf("%s %s %s", p.counter(), style.Render(symbol), o.Target.Name)
	if o.Username != "" && o.Status != session.Cancelled {
		line += " " + p.mutedStyle.Render("("+o.Username+")")
	}
	if !o.OK() {
		line += " " + style.Render(o.Status.String())
		if o.Reason != "" {
			line += p.mutedStyle.Render(": " + o.Reason)
		}
	}
	line += " " + p.mutedStyle.Render(ui.FormatDuration(o.Duration))

	if _, err := fmt.Fprintln(p.w, line); err != nil {
		return err
	}

	if p.showOutput {
		if err := p.writePrefixed(o.Target.Name, o.Stdout); err != nil {
			return err
		}
	}
	if p.showStderr {
		if err := p.writePrefixed(o.Target.Name, o.Stderr); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the printer does not own its writer.
func (p *StreamPrinter) Close() error { return nil }

func (p *StreamPrinter) counter() string {
	if p.total <= 0 {
		return p.mutedStyle.Render(fmt.Sprintf("[%d]", p.done))
	}
	return p.mutedStyle.Render(fmt.Sprintf("[%d/%d]", p.done, p.total))
}

func (p *StreamPrinter) writePrefixed(host string, data []byte) error {
	prefix := p.formatPrefix(host)
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(p.w, "%s %s\n", prefix, line); err != nil {
			return err
		}
	}
	return nil
}

// formatPrefix creates the output prefix for host lines.
func (p *StreamPrinter) formatPrefix(host string) string {
	return p.mutedStyle.Render(fmt.Sprintf("[%s]", host))
}
