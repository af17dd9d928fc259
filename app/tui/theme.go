package tui

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette of the terminal UI, in ANSI 256-color codes.
type Theme struct {
	Title     lipgloss.Color
	Faint     lipgloss.Color
	Accent    lipgloss.Color
	Error     lipgloss.Color
	Highlight lipgloss.Color
}

// DefaultTheme suits dark terminals.
var DefaultTheme = Theme{
	Title:     lipgloss.Color("255"),
	Faint:     lipgloss.Color("245"),
	Accent:    lipgloss.Color("33"),
	Error:     lipgloss.Color("196"),
	Highlight: lipgloss.Color("42"),
}

type styles struct {
	title   lipgloss.Style
	faint   lipgloss.Style
	label   lipgloss.Style
	key     lipgloss.Style
	button  lipgloss.Style
	err     lipgloss.Style
	value   lipgloss.Style
	divider lipgloss.Style
	frame   lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Title),
		faint:   lipgloss.NewStyle().Foreground(theme.Faint),
		label:   lipgloss.NewStyle().Foreground(theme.Faint),
		key:     lipgloss.NewStyle().Foreground(theme.Accent),
		button:  lipgloss.NewStyle().Bold(true).Foreground(theme.Title).Background(theme.Accent).Padding(0, 2),
		err:     lipgloss.NewStyle().Foreground(theme.Error),
		value:   lipgloss.NewStyle().Bold(true).Foreground(theme.Highlight),
		divider: lipgloss.NewStyle().Foreground(theme.Faint),
		frame:   lipgloss.NewStyle().Padding(1, 2),
	}
}
