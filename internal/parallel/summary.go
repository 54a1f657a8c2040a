package parallel

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/ui"
)

// Summary is the aggregate result of a run.
type Summary struct {
	Total     int
	OK        int
	Failed    int
	Cancelled bool
	Duration  time.Duration
	// Outcomes in completion order.
	Outcomes []session.Outcome
}

func (s *Summary) add(o session.Outcome) {
	s.Total++
	if o.OK() {
		s.OK++
	} else {
		s.Failed++
	}
	if o.Status == session.Cancelled {
		s.Cancelled = true
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Success reports whether every target completed Ok.
func (s Summary) Success() bool {
	return s.Failed == 0 && s.OK == s.Total
}

// ExitCode is the process exit status for the run: 0 only when every target
// completed Ok.
func (s Summary) ExitCode() int {
	if s.Success() {
		return 0
	}
	return 1
}

// ByInput returns the outcomes in inventory order.
func (s Summary) ByInput() []session.Outcome {
	sorted := make([]session.Outcome, len(s.Outcomes))
	copy(sorted, s.Outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Target.Index < sorted[j].Target.Index
	})
	return sorted
}

// CountByStatus tallies outcomes per terminal status.
func (s Summary) CountByStatus() map[session.Status]int {
	counts := make(map[session.Status]int)
	for _, o := range s.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// failureOrder is the order statuses appear in FailureBreakdown, following
// the phase each one ends in.
var failureOrder = []session.Status{
	session.ConnectFailed,
	session.AuthFailed,
	session.CommandTimedOut,
	session.CommandFailed,
	session.Cancelled,
}

// FailureBreakdown counts the failed outcomes per status, e.g.
// "1 auth_failed, 2 command_failed". Empty when nothing failed.
func FailureBreakdown(sum Summary) string {
	counts := sum.CountByStatus()
	var parts []string
	for _, st := range failureOrder {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	return strings.Join(parts, ", ")
}

// SummaryConfig holds configuration for rendering the summary.
type SummaryConfig struct {
	// SaveDir, when set, is printed so users can find per-host output.
	SaveDir string
	// LogFile, when set, is printed as the JSONL record location.
	LogFile string
	// MaxOutputLines limits the stderr tail shown per failed host.
	MaxOutputLines int
}

// DefaultSummaryConfig returns default summary configuration.
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{MaxOutputLines: 5}
}

// RenderSummaryTo prints a formatted summary to w: one line per failed host
// with its reason, then the aggregate counts.
func RenderSummaryTo(w io.Writer, sum Summary, cfg SummaryConfig) {
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	warnStyle := ui.WarningStyle()
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Foreground(ui.ColorSecondary).Bold(true)

	divider := mutedStyle.Render(strings.Repeat("─", 60))

	fmt.Fprintln(w)
	fmt.Fprintln(w, divider)
	fmt.Fprintln(w)

	var failed []session.Outcome
	for _, o := range sum.ByInput() {
		if !o.OK() {
			failed = append(failed, o)
		}
	}

	if len(failed) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Failed Hosts"))
		fmt.Fprintln(w)
		for _, o := range failed {
			style := errorStyle
			symbol := ui.SymbolFail
			if o.Status == session.Cancelled {
				style = warnStyle
				symbol = ui.SymbolSkipped
			}
			fmt.Fprintf(w, "  %s %s %s %s\n",
				style.Render(symbol),
				o.Target.Name,
				mutedStyle.Render(o.Status.String()),
				mutedStyle.Render(fmt.Sprintf("(%s)", ui.FormatDuration(o.Duration))),
			)
			if o.Reason != "" {
				fmt.Fprintf(w, "    %s\n", mutedStyle.Render(o.Reason))
			}
			if cfg.MaxOutputLines > 0 && o.Status == session.CommandFailed {
				renderFallbackOutput(w, o.Stderr, cfg.MaxOutputLines, mutedStyle)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "  "+ui.CountsLine(sum.OK, sum.Failed, sum.Total, sum.Duration))
	if breakdown := FailureBreakdown(sum); breakdown != "" {
		fmt.Fprintf(w, "  Failures: %s\n", breakdown)
	}

	if sum.Cancelled {
		fmt.Fprintf(w, "  %s\n", warnStyle.Render(ui.SymbolWarning+" run was cancelled"))
	}
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Log:"), mutedStyle.Render(cfg.LogFile))
	}
	if cfg.SaveDir != "" {
		savePath := cfg.SaveDir
		// Point straight at the output of a lone failure.
		if len(failed) == 1 && failed[0].Status.Ran() {
			savePath = filepath.Join(cfg.SaveDir, SanitizeFilename(failed[0].Target.Name)+".stderr.txt")
		}
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Output:"), mutedStyle.Render(savePath))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, divider)
}

// FormatBriefSummary returns a one-line summary string.
func FormatBriefSummary(sum Summary) string {
	if sum.Total == 0 {
		return "No hosts"
	}
	if sum.Success() {
		return fmt.Sprintf("%d/%d hosts ok (%s)", sum.OK, sum.Total, ui.FormatDuration(sum.Duration))
	}
	return fmt.Sprintf("%d ok, %d failed of %d hosts (%s)",
		sum.OK, sum.Failed, sum.Total, ui.FormatDuration(sum.Duration))
}

// SanitizeFilename converts a host name to a safe file name. Characters that
// are invalid in file names on common platforms become dashes.
func SanitizeFilename(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' || c == '\\' || c == ':' || c == '*' || c == '?' || c == '"' || c == '<' || c == '>' || c == '|' {
			result[i] = '-'
		} else {
			result[i] = c
		}
	}
	if s := string(result); s != "" && s != "." && s != ".." {
		return s
	}
	return "host"
}

// renderFallbackOutput shows the last maxLines lines of raw output.
func renderFallbackOutput(w io.Writer, rawOutput []byte, maxLines int, mutedStyle lipgloss.Style) {
	text := strings.TrimSpace(string(rawOutput))
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")

	start := 0
	if len(lines) > maxLines {
		start = len(lines) - maxLines
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(fmt.Sprintf("... (%d lines omitted)", start)))
	}

	for _, line := range lines[start:] {
		if line != "" {
			fmt.Fprintf(w, "    %s\n", mutedStyle.Render(line))
		}
	}
}
