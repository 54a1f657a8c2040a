package dashboard

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/scatter/internal/ui"
)

const (
	// footerMinHeight hides the key help on short terminals.
	footerMinHeight = 12
	// chromeLines is the space taken by header, bar and footer.
	chromeLines = 4
	// defaultVisible is used before the first WindowSizeMsg.
	defaultVisible = 15
)

// Row styles, one per host phase.
var (
	pendingStyle    = ui.MutedStyle()
	connectingStyle = lipgloss.NewStyle().Foreground(ui.ColorInfo)
	runningStyle    = lipgloss.NewStyle().Foreground(ui.ColorNeonPink)
	passedStyle     = ui.SuccessStyle()
	failedStyle     = ui.ErrorStyle()
	cancelledStyle  = ui.WarningStyle()
	mutedStyle      = ui.MutedStyle()
)

// Header and cursor styles.
var (
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorPrimary)
	summaryPassedStyle = passedStyle.Bold(true)
	summaryFailedStyle = failedStyle.Bold(true)

	selectedStyle   = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a2e")).Padding(0, 1)
	unselectedStyle = lipgloss.NewStyle().Padding(0, 1)
)

// showFooter reports whether the terminal has room for the key help. A zero
// height means no size is known yet.
func showFooter(height int) bool {
	return height == 0 || height >= footerMinHeight
}
