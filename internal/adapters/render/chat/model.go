package chat

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/bnema/docqa-cli/internal/adapters/render/markup"
	"github.com/bnema/docqa-cli/internal/application"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var ErrUnexpectedModel = errors.New("unexpected final bubbletea model type")

const (
	noticeCopied     = "Answer copied to clipboard"
	noticeCopyFailed = "Could not copy to clipboard"
	noticeNoAnswer   = "No answer to copy yet"
)

// Controller is the subset of the application controller the chat view
// drives.
type Controller interface {
	State() application.State
	VoiceAvailable() bool
	SubmitQuestion(ctx context.Context, text string) (domain.Message, bool)
	UploadDocument(ctx context.Context, path string) (domain.Message, bool)
	ClearDocuments(ctx context.Context) (bool, error)
	ClearChat(ctx context.Context) (bool, error)
	ToggleVoiceInput(ctx context.Context) error
	RefreshDocumentStatus(ctx context.Context) error
	Notify(level domain.NotificationLevel, text string)
}

type mode int

const (
	modeChat mode = iota
	modePicker
	modeConfirm
)

type operationDoneMsg struct {
	err error
}

type Options struct {
	Title     string
	ServerURL string
	// StartDir is where the file picker opens; defaults to the working
	// directory.
	StartDir  string
	Clipboard func(string) error
	Input     io.Reader
	Output    io.Writer
}

type Model struct {
	ctx        context.Context
	controller Controller
	opts       Options
	styles     styles

	state   application.State
	content string

	mode          mode
	confirmPrompt string
	confirmReply  chan<- bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	picker   filepicker.Model

	width  int
	height int
}

func NewModel(ctx context.Context, controller Controller, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Document Q&A"
	}
	if opts.StartDir == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.StartDir = wd
		}
	}

	input := textinput.New()
	input.Placeholder = "Ask a question about your documents..."
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Focus()

	picker := filepicker.New()
	picker.CurrentDirectory = opts.StartDir
	picker.AutoHeight = false
	picker.ShowPermissions = false

	m := Model{
		ctx:        ctx,
		controller: controller,
		opts:       opts,
		styles:     newStyles(),
		input:      input,
		viewport:   viewport.New(80, 20),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		picker: picker,
		width:  80,
		height: 24,
	}
	m.state = controller.State()
	m.layout()
	m.refreshTranscript()

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.run(m.controller.RefreshDocumentStatus),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		if m.mode == modePicker {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}
		return m, nil

	case stateMsg:
		m.applyState(msg.state)
		return m, nil

	case confirmRequestMsg:
		if m.confirmReply != nil {
			// One modal at a time; a second request is declined.
			msg.reply <- false
			return m, nil
		}
		m.mode = modeConfirm
		m.confirmPrompt = msg.prompt
		m.confirmReply = msg.reply
		m.input.Blur()
		return m, nil

	case operationDoneMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.answerConfirm(false)
			return m, tea.Quit
		}
		switch m.mode {
		case modeConfirm:
			return m.updateConfirm(msg)
		case modePicker:
			return m.updatePicker(msg)
		default:
			return m.updateChat(msg)
		}
	}

	if m.mode == modePicker {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		question := m.input.Value()
		return m, m.run(func(ctx context.Context) error {
			m.controller.SubmitQuestion(ctx, question)
			return nil
		})

	case "ctrl+o":
		m.mode = modePicker
		m.input.Blur()
		m.layout()
		return m, m.picker.Init()

	case "ctrl+r":
		return m, m.run(m.controller.ToggleVoiceInput)

	case "ctrl+l":
		return m, m.run(func(ctx context.Context) error {
			_, err := m.controller.ClearChat(ctx)
			return err
		})

	case "ctrl+d":
		if !m.state.Documents.ClearControlVisible() {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error {
			_, err := m.controller.ClearDocuments(ctx)
			return err
		})

	case "ctrl+y":
		return m, m.copyLastAnswer()

	case "pgup", "pgdown", "ctrl+up", "ctrl+down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.closePicker()
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if selected, path := m.picker.DidSelectFile(msg); selected {
		m.closePicker()
		return m, tea.Batch(cmd, m.run(func(ctx context.Context) error {
			m.controller.UploadDocument(ctx, path)
			return nil
		}))
	}

	return m, cmd
}

func (m *Model) closePicker() {
	m.mode = modeChat
	m.input.Focus()
	m.layout()
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.answerConfirm(true)
	case "n", "N", "esc":
		m.answerConfirm(false)
	}
	return m, nil
}

func (m *Model) answerConfirm(ok bool) {
	if m.confirmReply == nil {
		return
	}
	m.confirmReply <- ok
	m.confirmReply = nil
	m.confirmPrompt = ""
	m.mode = modeChat
	m.input.Focus()
}

func (m Model) copyLastAnswer() tea.Cmd {
	last, ok := m.state.Transcript.LastFrom(domain.OriginAssistant)
	controller := m.controller
	if !ok {
		return m.run(func(context.Context) error {
			controller.Notify(domain.NotificationInfo, noticeNoAnswer)
			return nil
		})
	}

	text := markup.Plain(markup.FormatMessage(last.Body))
	write := m.opts.Clipboard
	return m.run(func(context.Context) error {
		if write == nil {
			controller.Notify(domain.NotificationError, noticeCopyFailed)
			return errors.New("clipboard unavailable")
		}
		if err := write(text); err != nil {
			controller.Notify(domain.NotificationError, noticeCopyFailed)
			return err
		}
		controller.Notify(domain.NotificationSuccess, noticeCopied)
		return nil
	})
}

// run executes op off the update loop. Controller calls publish state back
// through the program, so they must never run inside Update.
func (m Model) run(op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return operationDoneMsg{err: op(ctx)}
	}
}

func (m *Model) applyState(s application.State) {
	if s.Revision <= m.state.Revision {
		return
	}

	if s.DraftRevision != m.state.DraftRevision {
		m.input.SetValue(s.Draft)
		m.input.CursorEnd()
	}
	m.state = s
	m.layout()
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	content := renderTranscript(m.state.Transcript, m.viewport.Width, m.styles)
	if content == m.content {
		return
	}
	m.content = content
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// layout sizes the transcript viewport to whatever the fixed chrome leaves.
func (m *Model) layout() {
	width := max(m.width, 20)
	m.viewport.Width = width
	m.input.Width = max(width-8, 10)

	chrome := lipgloss.Height(m.headerView()) +
		lipgloss.Height(m.statusView()) +
		lipgloss.Height(m.footerView()) +
		lipgloss.Height(m.helpView())
	if notices := m.notificationsView(); notices != "" {
		chrome += lipgloss.Height(notices)
	}

	m.viewport.Height = max(m.height-chrome, 3)
	m.picker.Height = max(m.viewport.Height-2, 3)
}

// Run starts the chat program on the terminal and blocks until the user
// quits. bridge is attached to the program before it starts.
func Run(ctx context.Context, controller Controller, bridge *Bridge, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	programOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	p := tea.NewProgram(NewModel(ctx, controller, opts), programOpts...)
	bridge.Attach(p)

	finalModel, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if _, ok := finalModel.(Model); !ok {
		return ErrUnexpectedModel
	}

	return nil
}
