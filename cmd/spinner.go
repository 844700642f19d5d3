package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// elapsedAfter is how long a call runs before the wait line shows a timer.
const elapsedAfter = time.Second

var (
	waitSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	waitElapsedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type workFinishedMsg struct {
	err error
}

// waitModel is the single line shown on stderr while a one-shot command is
// waiting on the service: spinner, label and, for slow calls, the elapsed
// time. The line is cleared once the work returns.
type waitModel struct {
	spinner spinner.Model
	label   string
	started time.Time
	now     func() time.Time
	work    tea.Cmd

	finished bool
	err      error
}

func newWaitModel(label string, now func() time.Time, work tea.Cmd) waitModel {
	if now == nil {
		now = time.Now
	}
	return waitModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(waitSpinnerStyle)),
		label:   label,
		started: now(),
		now:     now,
		work:    work,
	}
}

func (m waitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(workFinishedMsg); ok {
		m.finished = true
		m.err = done.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m waitModel) View() string {
	if m.finished {
		return ""
	}

	line := m.spinner.View() + " " + m.label
	if elapsed := m.now().Sub(m.started); elapsed >= elapsedAfter {
		line += " " + waitElapsedStyle.Render(fmt.Sprintf("(%ds)", int(elapsed.Seconds())))
	}
	return line
}

// waitFor runs work, drawing the wait line on stderr when stderr is a
// terminal. Work always receives the command's context.
func waitFor(cmd *cobra.Command, app *app, label string, work func(context.Context) error) error {
	ctx := cmd.Context()
	if !app.interactive {
		return work(ctx)
	}
	return runWaitLine(ctx, cmd.ErrOrStderr(), label, app.now, work)
}

func runWaitLine(ctx context.Context, out io.Writer, label string, now func() time.Time, work func(context.Context) error) error {
	model := newWaitModel(label, now, func() tea.Msg {
		return workFinishedMsg{err: work(ctx)}
	})

	final, err := tea.NewProgram(model,
		tea.WithInput(nil),
		tea.WithOutput(out),
		tea.WithContext(ctx),
	).Run()
	if err != nil {
		return fmt.Errorf("run wait indicator: %w", err)
	}

	finished, ok := final.(waitModel)
	if !ok {
		return fmt.Errorf("wait indicator ended with %T", final)
	}
	return finished.err
}
