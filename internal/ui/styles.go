package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary = lipgloss.Color("39")  // Cyan
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorMuted   = lipgloss.Color("245") // Gray
)

// Styles for various UI elements
var (
	Bold   = lipgloss.NewStyle().Bold(true)
	Dim    = lipgloss.NewStyle().Foreground(ColorMuted)
	Header = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)

	DocName = lipgloss.NewStyle().Foreground(ColorPrimary)

	SourceRef = lipgloss.NewStyle().Foreground(ColorMuted)
	Score     = lipgloss.NewStyle().Foreground(ColorSuccess)
)

// FormatScore formats a similarity score as a percentage.
func FormatScore(score float64) string {
	return Score.Render(fmt.Sprintf("%.0f%%", score*100))
}

// FormatSource formats a source citation line.
func FormatSource(n int, name string, excerpt int, score float64) string {
	return SourceRef.Render(fmt.Sprintf("[%d] ", n)) +
		DocName.Render(name) +
		SourceRef.Render(fmt.Sprintf(" (excerpt %d, ", excerpt)) +
		FormatScore(score) +
		SourceRef.Render(")")
}
