package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("39")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("220")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("241")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	stdoutStyle = lipgloss.NewStyle()

	stderrStyle = lipgloss.NewStyle().
			Foreground(colorError)

	markerCompletedStyle = lipgloss.NewStyle().
				Foreground(colorSuccess)

	markerFailedStyle = lipgloss.NewStyle().
				Foreground(colorError)

	markerKilledStyle = lipgloss.NewStyle().
				Foreground(colorWarning)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)
)
