package tui

import "github.com/charmbracelet/lipgloss"

const sidebarWidth = 34

var (
	accent = lipgloss.Color("170")
	dim    = lipgloss.Color("245")
	danger = lipgloss.Color("196")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle    = lipgloss.NewStyle().Foreground(dim)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	timeStyle      = lipgloss.NewStyle().Foreground(dim)
	errorStyle     = lipgloss.NewStyle().Foreground(danger)
	statusStyle    = lipgloss.NewStyle().Foreground(dim).Italic(true)
	activeMode     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	inactiveMode   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Underline(true).MarginTop(1)

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim)
	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent)
)
