package status

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

// reportModel renders a report once and quits. View is empty until the
// program has delivered the first message, so nothing is drawn half-built.
type reportModel struct {
	report Report
	styles styles
	ready  bool
}

type reportReadyMsg struct{}

func (m reportModel) Init() tea.Cmd {
	return func() tea.Msg { return reportReadyMsg{} }
}

func (m reportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(reportReadyMsg); !ok {
		return m, nil
	}
	m.ready = true
	return m, tea.Quit
}

func (m reportModel) View() string {
	if !m.ready {
		return ""
	}
	return renderView(m.report, m.styles)
}

// Render produces the document status block printed by one-shot commands.
func Render(report Report) (string, error) {
	final, err := tea.NewProgram(
		reportModel{report: report, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	).Run()
	if err != nil {
		return "", err
	}

	rendered, ok := final.(reportModel)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}
	return rendered.View(), nil
}
