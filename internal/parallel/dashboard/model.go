package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/scatter/internal/session"
	"github.com/rileyhilliard/scatter/internal/target"
	"github.com/rileyhilliard/scatter/internal/ui"
)

// HostEntry holds the display state of one host.
type HostEntry struct {
	Name      string
	Index     int
	Username  string
	State     session.State
	Done      bool
	Status    session.Status
	StartTime time.Time
	Duration  time.Duration
	Reason    string
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	hosts      []HostEntry
	byIndex    map[int]int
	limit      int
	selected   int
	width      int
	height     int
	spinner    spinner.Model
	bar        progress.Model
	completed  bool
	ok         int
	failed     int
	cancelled  int
	totalTime  time.Duration
	cancelFunc context.CancelFunc
	quitting   bool
	startTime  time.Time
}

// NewModel creates a dashboard model listing targets in inventory order.
func NewModel(targets []target.Target, limit int, cancelFunc context.CancelFunc) Model {
	hosts := make([]HostEntry, len(targets))
	byIndex := make(map[int]int, len(targets))
	for i, t := range targets {
		hosts[i] = HostEntry{Name: t.Name, Index: t.Index, Username: t.Username, State: session.Pending}
		byIndex[t.Index] = i
	}

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return Model{
		hosts:      hosts,
		byIndex:    byIndex,
		limit:      limit,
		spinner:    ui.NewSpinner(),
		bar:        bar,
		cancelFunc: cancelFunc,
		startTime:  time.Now(),
	}
}

// Init returns the initial command for the model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, min(60, msg.Width-30))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateMsg:
		if i, ok := m.byIndex[msg.Index]; ok && !m.hosts[i].Done {
			if m.hosts[i].State == session.Pending {
				m.hosts[i].StartTime = time.Now()
			}
			m.hosts[i].State = msg.State
		}
		return m, nil

	case OutcomeMsg:
		o := msg.Outcome
		i, ok := m.byIndex[o.Target.Index]
		if !ok || m.hosts[i].Done {
			return m, nil
		}
		h := &m.hosts[i]
		h.Done = true
		h.State = session.Completed
		h.Status = o.Status
		h.Duration = o.Duration
		h.Reason = o.Reason
		if o.Username != "" {
			h.Username = o.Username
		}
		switch {
		case o.OK():
			m.ok++
		case o.Status == session.Cancelled:
			m.cancelled++
			m.failed++
		default:
			m.failed++
		}
		return m, nil

	case DoneMsg:
		m.completed = true
		m.totalTime = time.Since(m.startTime)
		return m, tea.Quit
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.selected < len(m.hosts)-1 {
			m.selected++
		}
		return m, nil

	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "g", "home":
		m.selected = 0
		return m, nil

	case "G", "end":
		if len(m.hosts) > 0 {
			m.selected = len(m.hosts) - 1
		}
		return m, nil

	case "q", "ctrl+c":
		if m.cancelFunc != nil {
			m.cancelFunc()
		}
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.bar.ViewAs(m.fraction()))
	sb.WriteString("\n")
	sb.WriteString(m.renderHostList())

	if showFooter(m.height) {
		sb.WriteString(m.renderFooter())
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) fraction() float64 {
	if len(m.hosts) == 0 {
		return 1
	}
	return float64(m.ok+m.failed) / float64(len(m.hosts))
}

// counts returns hosts per live phase.
func (m Model) counts() (pending, connecting, executing int) {
	for _, h := range m.hosts {
		if h.Done {
			continue
		}
		switch h.State {
		case session.Pending:
			pending++
		case session.Connecting, session.Authenticating:
			connecting++
		case session.Executing:
			executing++
		}
	}
	return pending, connecting, executing
}

// renderHeader renders the dashboard header.
func (m Model) renderHeader() string {
	title := headerStyle.Render(fmt.Sprintf("Hosts %d/%d", m.ok+m.failed, len(m.hosts)))

	if m.completed {
		var status string
		if m.failed > 0 {
			status = summaryFailedStyle.Render(fmt.Sprintf("%d failed", m.failed)) +
				mutedStyle.Render(", ") +
				summaryPassedStyle.Render(fmt.Sprintf("%d ok", m.ok))
		} else {
			status = summaryPassedStyle.Render(fmt.Sprintf("All %d ok", m.ok))
		}
		return title + " " + status + mutedStyle.Render(" in "+ui.FormatDuration(m.totalTime))
	}

	pending, connecting, executing := m.counts()
	parts := []string{}
	if executing > 0 {
		parts = append(parts, runningStyle.Render(fmt.Sprintf("%d running", executing)))
	}
	if connecting > 0 {
		parts = append(parts, connectingStyle.Render(fmt.Sprintf("%d connecting", connecting)))
	}
	if pending > 0 {
		parts = append(parts, pendingStyle.Render(fmt.Sprintf("%d pending", pending)))
	}
	if m.ok > 0 {
		parts = append(parts, passedStyle.Render(fmt.Sprintf("%d ok", m.ok)))
	}
	if m.failed > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	if m.limit > 0 {
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("limit %d", m.limit)))
	}
	return title + " " + strings.Join(parts, mutedStyle.Render(" | "))
}

// visibleRange returns the window of hosts that fits the terminal, keeping
// the selection in view.
func (m Model) visibleRange() (start, end int) {
	rows := defaultVisible
	if m.height > 0 {
		rows = max(1, m.height-chromeLines)
	}
	if rows >= len(m.hosts) {
		return 0, len(m.hosts)
	}
	start = max(0, m.selected-rows/2)
	end = start + rows
	if end > len(m.hosts) {
		end = len(m.hosts)
		start = end - rows
	}
	return start, end
}

// renderHostList renders the visible host entries.
func (m Model) renderHostList() string {
	var sb strings.Builder

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		sb.WriteString(m.renderHostLine(m.hosts[i], i == m.selected))
		sb.WriteString("\n")
	}
	if hidden := len(m.hosts) - (end - start); hidden > 0 {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  ... %d more (j/k to scroll)", hidden)))
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderHostLine renders a single host entry.
func (m Model) renderHostLine(h HostEntry, selected bool) string {
	var symbol string
	var statusStyle lipgloss.Style
	label := ""

	switch {
	case h.Done && h.Status == session.Ok:
		symbol, statusStyle = ui.SymbolSuccess, passedStyle
	case h.Done && h.Status == session.Cancelled:
		symbol, statusStyle = ui.SymbolSkipped, cancelledStyle
		label = h.Status.String()
	case h.Done:
		symbol, statusStyle = ui.SymbolFail, failedStyle
		label = h.Status.String()
	case h.State == session.Pending:
		symbol, statusStyle = ui.SymbolPending, pendingStyle
	case h.State == session.Executing:
		symbol, statusStyle = m.spinner.View(), runningStyle
		label = "running"
	default:
		symbol, statusStyle = ui.SymbolConnect, connectingStyle
		label = h.State.String()
	}

	line := statusStyle.Render(symbol) + " " + h.Name
	if h.Username != "" && h.State != session.Pending {
		line += " " + mutedStyle.Render("("+h.Username+")")
	}
	if label != "" {
		line += " " + statusStyle.Render(label)
	}

	switch {
	case h.Done:
		line += " " + mutedStyle.Render(ui.FormatDuration(h.Duration))
		if h.Reason != "" && h.Status != session.Ok {
			line += mutedStyle.Render(": " + h.Reason)
		}
	case !h.StartTime.IsZero():
		line += " " + mutedStyle.Render(ui.FormatDuration(time.Since(h.StartTime)))
	}

	if selected {
		return selectedStyle.Render(line)
	}
	return unselectedStyle.Render(line)
}

// renderFooter renders the footer with keyboard shortcuts.
func (m Model) renderFooter() string {
	return mutedStyle.Render("j/k: scroll | q: cancel run")
}
