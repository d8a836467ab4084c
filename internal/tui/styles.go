package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3C3C8C")).
			Padding(0, 1)

	listStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5A56E0"))

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	filterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	flashStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusColors = map[string]lipgloss.Color{
		types.StatusNotStarted: lipgloss.Color("244"),
		types.StatusInProgress: lipgloss.Color("214"),
		types.StatusPassed:     lipgloss.Color("42"),
		types.StatusFailed:     lipgloss.Color("196"),
		types.RunStatusNotRun:  lipgloss.Color("244"),
		types.RunStatusPass:    lipgloss.Color("42"),
		types.RunStatusFail:    lipgloss.Color("196"),
		types.RunStatusSkip:    lipgloss.Color("111"),
	}
)

// statusIcons are the one-cell markers used in the case list.
var statusIcons = map[string]string{
	types.StatusNotStarted: "○",
	types.StatusInProgress: "◐",
	types.StatusPassed:     "✓",
	types.StatusFailed:     "✗",
}

func statusIcon(status string) string {
	icon, ok := statusIcons[status]
	if !ok {
		icon = "?"
	}
	return lipgloss.NewStyle().Foreground(statusColors[status]).Render(icon)
}

func colorStatus(status, text string) string {
	return lipgloss.NewStyle().Foreground(statusColors[status]).Render(text)
}
