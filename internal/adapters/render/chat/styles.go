package chat

import (
	"github.com/bnema/docqa-cli/internal/adapters/render/markup"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title        lipgloss.Style
	userLabel    lipgloss.Style
	botLabel     lipgloss.Style
	errorBody    lipgloss.Style
	statusBar    lipgloss.Style
	loaded       lipgloss.Style
	empty        lipgloss.Style
	recording    lipgloss.Style
	help         lipgloss.Style
	input        lipgloss.Style
	confirm      lipgloss.Style
	notifySucc   lipgloss.Style
	notifyErr    lipgloss.Style
	notifyInfo   lipgloss.Style
	notifyFading lipgloss.Style
	markup       markup.Theme
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1),
		userLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("28")).
			Padding(0, 1),
		botLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("25")).
			Padding(0, 1),
		errorBody: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		statusBar: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		loaded:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		empty:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		recording: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		help:      lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
		confirm: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Bold(true).
			Padding(0, 1),
		notifySucc:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("28")).Padding(0, 1),
		notifyErr:    lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("160")).Padding(0, 1),
		notifyInfo:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("25")).Padding(0, 1),
		notifyFading: lipgloss.NewStyle().Faint(true).Padding(0, 1),
		markup:       markup.DefaultTheme(),
	}
}
