package tui

import "github.com/charmbracelet/lipgloss"

var (
	indigo = lipgloss.Color("#3b4cca")
	text   = lipgloss.Color("#e6e8f0")
	subtle = lipgloss.Color("#8a8fa3")
	green  = lipgloss.Color("#4fb873")
	amber  = lipgloss.Color("#e0a340")
	red    = lipgloss.Color("#d9534f")

	headerStyle = lipgloss.NewStyle().
			Foreground(text).
			Background(indigo).
			Bold(true).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1)

	clockStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	lowClock     = lipgloss.NewStyle().Foreground(amber).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(subtle)
	tutorStyle   = lipgloss.NewStyle().Foreground(indigo).Bold(true)
	studentStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	starStyle    = lipgloss.NewStyle().Foreground(amber)
)
