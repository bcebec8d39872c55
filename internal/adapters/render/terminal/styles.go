package terminal

import "github.com/charmbracelet/lipgloss"

type styles struct {
	plain   lipgloss.Style
	prompt  lipgloss.Style
	hint    lipgloss.Style
	help    lipgloss.Style
	more    lipgloss.Style
	event   lipgloss.Style
	error   lipgloss.Style
	command lipgloss.Style
	oracle  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		plain:   r.NewStyle(),
		prompt:  r.NewStyle().Foreground(lipgloss.Color("82")),
		hint:    r.NewStyle().Foreground(lipgloss.Color("220")),
		help:    r.NewStyle().Foreground(lipgloss.Color("39")),
		more:    r.NewStyle().Foreground(lipgloss.Color("213")),
		event:   r.NewStyle().Foreground(lipgloss.Color("208")),
		error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		command: r.NewStyle().Foreground(lipgloss.Color("245")),
		oracle:  r.NewStyle().Foreground(lipgloss.Color("141")),
	}
}
