package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/scatter/internal/credential"
	"github.com/rileyhilliard/scatter/internal/parallel"
	"github.com/rileyhilliard/scatter/internal/ui"
)

const (
	planCommandWidth = 40
	// resultFixedWidth is roughly what the -v table needs besides REASON.
	resultFixedWidth = 80
	minReasonWidth   = 20
)

var planHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorSecondary)

// renderPlan prints what a run would do. It is built from the resolved
// targets only, so no connection is ever opened. With verbose set every
// host's credential attempts are listed in the order they will be tried.
func renderPlan(w io.Writer, plan *runPlan, limit int, agent, verbose bool) {
	rows := make([]ui.PlanRow, len(plan.targets))
	for i, t := range plan.targets {
		rows[i] = ui.PlanRow{
			Index:    t.Index,
			Host:     t.Name,
			Address:  t.Address,
			Port:     t.Port,
			Username: t.Username,
			Auth:     authSummary(t.Attempts(agent)),
			Attempts: t.RetryAttempts,
			Command:  t.CommandPreview(planCommandWidth),
		}
	}

	header := fmt.Sprintf("Dry run: %d hosts, limit %d, known_hosts %s", len(plan.targets), limit, plan.knownHosts)
	fmt.Fprintln(w, planHeaderStyle.Render(header))
	fmt.Fprintln(w, ui.RenderPlanTable(rows, planCommandWidth))
	if verbose {
		renderAttemptOrder(w, plan, agent)
	}
	fmt.Fprintln(w, ui.MutedStyle().Render("No connections were made."))
}

// renderAttemptOrder lists each host's credential plan, one numbered line per
// attempt. Passwords render masked.
func renderAttemptOrder(w io.Writer, plan *runPlan, agent bool) {
	fmt.Fprintln(w, planHeaderStyle.Render("Attempt order:"))
	for _, t := range plan.targets {
		fmt.Fprintf(w, "  %s\n", t.Name)
		attempts := t.Attempts(agent)
		if len(attempts) == 0 {
			fmt.Fprintln(w, ui.MutedStyle().Render("    (no credentials)"))
			continue
		}
		for i, a := range attempts {
			fmt.Fprintf(w, "    %d. %s\n", i+1, a)
		}
	}
}

// authSummary condenses a credential plan for display, keeping method
// order: "key x2, password x4". Secrets never appear.
func authSummary(attempts []credential.Attempt) string {
	if len(attempts) == 0 {
		return "none"
	}

	var order []credential.Method
	counts := make(map[credential.Method]int)
	for _, a := range attempts {
		if counts[a.Method] == 0 {
			order = append(order, a.Method)
		}
		counts[a.Method]++
	}

	parts := make([]string, len(order))
	for i, m := range order {
		parts[i] = string(m)
		if n := counts[m]; n > 1 {
			parts[i] += " x" + strconv.Itoa(n)
		}
	}
	return strings.Join(parts, ", ")
}

// resultRows lists every outcome in inventory order for the -v table.
func resultRows(sum parallel.Summary) []ui.ResultRow {
	outcomes := sum.ByInput()
	rows := make([]ui.ResultRow, len(outcomes))
	for i, o := range outcomes {
		exit := "-"
		if o.ExitCode != nil {
			exit = strconv.Itoa(*o.ExitCode)
		}
		rows[i] = ui.ResultRow{
			Host:     o.Target.Name,
			Status:   o.Status.String(),
			ExitCode: exit,
			Username: o.Username,
			Duration: ui.FormatDuration(o.Duration),
			Reason:   o.Reason,
		}
	}
	return rows
}

// reasonWidth sizes the REASON column to the terminal. Non-terminals get
// 60 columns.
func reasonWidth(w io.Writer) int {
	return max(minReasonWidth, ui.TerminalWidth(w, resultFixedWidth+60)-resultFixedWidth)
}
