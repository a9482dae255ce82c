package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	header    lipgloss.Style
	panel     lipgloss.Style
	author    lipgloss.Style
	self      lipgloss.Style
	timestamp lipgloss.Style
	pending   lipgloss.Style
	status    lipgloss.Style
	notice    lipgloss.Style
	help      lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(blue).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		author:    lipgloss.NewStyle().Foreground(blue).Bold(true),
		self:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		timestamp: lipgloss.NewStyle().Foreground(muted),
		pending:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		status:    lipgloss.NewStyle().Foreground(mint),
		notice:    lipgloss.NewStyle().Foreground(pink).Bold(true),
		help:      lipgloss.NewStyle().Foreground(muted),
	}
}
