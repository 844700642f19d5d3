package chat

import (
	"fmt"
	"strings"

	"github.com/bnema/docqa-cli/internal/adapters/render/markup"
	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	sections := []string{m.headerView()}
	if notices := m.notificationsView(); notices != "" {
		sections = append(sections, notices)
	}

	if m.mode == modePicker {
		sections = append(sections, m.pickerView())
	} else {
		sections = append(sections, m.viewport.View())
	}

	sections = append(sections, m.statusView(), m.footerView(), m.helpView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	title := m.styles.title.Render(m.opts.Title)
	if m.opts.ServerURL == "" {
		return title
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, m.styles.help.Render(m.opts.ServerURL))
}

func (m Model) pickerView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.help.Render("Select a document to upload (esc to cancel)"),
		m.picker.View(),
	)
}

// statusView is the document status bar: label, count and the indicators
// for loading and voice capture.
func (m Model) statusView() string {
	docs := m.state.Documents
	labelStyle := m.styles.empty
	if docs.Loaded() {
		labelStyle = m.styles.loaded
	}

	parts := []string{
		labelStyle.Render("● " + docs.Label()),
		fmt.Sprintf("docs: %s", docs.CountLabel()),
	}
	if m.state.Loading() {
		parts = append(parts, m.spinner.View()+" Processing...")
	}
	if m.state.Recording() {
		parts = append(parts, m.styles.recording.Render("● REC"))
	}

	return m.styles.statusBar.Width(max(m.width, 20)).Render(strings.Join(parts, "  "))
}

func (m Model) footerView() string {
	if m.mode == modeConfirm {
		return m.styles.confirm.Render(m.confirmPrompt + "  [y/N]")
	}
	return m.styles.input.Render(m.input.View())
}

func (m Model) helpView() string {
	keys := []string{"enter send", "ctrl+o upload"}
	if m.controller.VoiceAvailable() {
		keys = append(keys, "ctrl+r voice")
	}
	keys = append(keys, "ctrl+l clear chat")
	if m.state.Documents.ClearControlVisible() {
		keys = append(keys, "ctrl+d clear docs")
	}
	keys = append(keys, "ctrl+y copy", "pgup/pgdn scroll", "ctrl+c quit")

	return m.styles.help.Render(strings.Join(keys, " • "))
}

func (m Model) notificationsView() string {
	visible := m.state.VisibleNotifications()
	if len(visible) == 0 {
		return ""
	}

	width := max(m.width, 20)
	lines := make([]string, 0, len(visible))
	for _, n := range visible {
		text := n.Level.Icon() + " " + n.Text
		line := m.notificationStyle(n).Render(text)
		lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Right, line))
	}

	return lipgloss.JoinVertical(lipgloss.Right, lines...)
}

func (m Model) notificationStyle(n domain.Notification) lipgloss.Style {
	if n.Phase == domain.PhaseEntering || n.Phase == domain.PhaseLeaving {
		return m.styles.notifyFading
	}

	switch n.Level {
	case domain.NotificationSuccess:
		return m.styles.notifySucc
	case domain.NotificationError:
		return m.styles.notifyErr
	default:
		return m.styles.notifyInfo
	}
}

func renderTranscript(transcript domain.Transcript, width int, s styles) string {
	messages := transcript.Messages()
	if len(messages) == 0 {
		return s.help.Render("Upload a document with ctrl+o, then ask a question.")
	}

	bodyWidth := max(width-2, 10)
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, renderMessage(msg, bodyWidth, s))
	}

	return strings.Join(blocks, "\n\n")
}

func renderMessage(msg domain.Message, width int, s styles) string {
	label := s.botLabel.Render("Assistant")
	if msg.Origin == domain.OriginUser {
		label = s.userLabel.Render("You")
	}

	body := markup.Render(markup.FormatMessage(msg.Body), width, s.markup)
	if msg.IsError() {
		body = s.errorBody.Render(body)
	}
	body = lipgloss.NewStyle().Width(width).PaddingLeft(1).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}
