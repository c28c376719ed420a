// Package render formats client state for the terminal. NO_COLOR is honoured
// by lipgloss's color profile detection.
package render

import "github.com/charmbracelet/lipgloss"

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
)

var (
	textSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	textError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	textWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	textInfo    = lipgloss.NewStyle().Foreground(colorInfo)
	textMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	bold        = lipgloss.NewStyle().Bold(true)
)
