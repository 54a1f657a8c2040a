package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors use ANSI codes so they follow the user's terminal theme.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// ColorNeonPink marks hosts whose command is running on the dashboard.
const ColorNeonPink lipgloss.Color = "#ff2e97"

// Color modes accepted by --color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// SuccessStyle returns the style for successful results.
func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }

// ErrorStyle returns the style for failures.
func ErrorStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorError) }

// WarningStyle returns the style for warnings and cancelled hosts.
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }

// MutedStyle returns the style for secondary text.
func MutedStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorMuted) }

// ColorProfile maps a --color mode to a termenv profile for output w.
// "auto" defers to the terminal and to NO_COLOR / CLICOLOR_FORCE.
func ColorProfile(mode string, w io.Writer) termenv.Profile {
	switch mode {
	case ColorNever:
		return termenv.Ascii
	case ColorAlways:
		if p := termenv.NewOutput(w).EnvColorProfile(); p < termenv.ANSI256 {
			return p
		}
		return termenv.ANSI256
	default:
		return termenv.NewOutput(w).EnvColorProfile()
	}
}

// ApplyColorMode sets the global lipgloss profile for the run.
func ApplyColorMode(mode string, w io.Writer) {
	lipgloss.SetColorProfile(ColorProfile(mode, w))
}
