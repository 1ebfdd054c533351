package dashboard

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#5FAFFF")
	colorMuted  = lipgloss.Color("#808080")
	colorWarn   = lipgloss.Color("#FFAF00")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	headerStyle      = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
	placeholderStyle = cellStyle.Foreground(colorMuted)
	borderStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	spinnerStyle     = lipgloss.NewStyle().Foreground(colorWarn)
)
