package tui

import "github.com/charmbracelet/lipgloss"

// Theme colors.
const (
	ColorAccent  = "86"
	ColorSuccess = "42"
	ColorWarning = "208"
	ColorDanger  = "196"
	ColorMuted   = "241"
)

var styles = struct {
	Title       lipgloss.Style
	Description lipgloss.Style
	Hint        lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Error       lipgloss.Style
	Translation lipgloss.Style
	Examples    lipgloss.Style
}{
	Title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
	Description: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted)),
	Hint:        lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted)),
	Success:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorSuccess)),
	Warning:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWarning)),
	Error:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorDanger)),
	Translation: lipgloss.NewStyle().PaddingLeft(2),
	Examples: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorMuted)).
		Padding(0, 1),
}
