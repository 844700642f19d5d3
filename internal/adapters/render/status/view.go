package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth = 20
	// barScale is the document count that fills the bar; larger collections
	// render a full bar.
	barScale = 20
)

// Report is one document status check against the server.
type Report struct {
	Server    string
	Status    domain.DocumentStatus
	CheckedAt time.Time
	Latency   time.Duration
	// Err is set when the status could not be fetched.
	Err error
}

func renderView(report Report, s styles) string {
	lines := []string{
		s.title.Render("Document Status"),
		s.header.Render("server: " + serverLabel(report.Server)),
	}

	if report.Err != nil {
		lines = append(lines,
			s.section.Render(s.warning.Render("server unreachable")),
			s.detail.Render(report.Err.Error()),
		)
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, s.section.Render(statusLine(report.Status, s)))
	lines = append(lines, lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.detail.Render(fmt.Sprintf("documents: %s", report.Status.CountLabel())),
		" ",
		renderCountBar(report.Status.Count, barWidth, s),
	))

	if meta := checkedLine(report); meta != "" {
		lines = append(lines, s.meta.Render(meta))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusLine(status domain.DocumentStatus, s styles) string {
	if status.Loaded() {
		return s.loaded.Render("● " + status.Label())
	}
	return s.empty.Render("○ " + status.Label())
}

func renderCountBar(count int, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := count * width / barScale
	if filled > width {
		filled = width
	}
	if count > 0 && filled == 0 {
		filled = 1
	}

	return "[" + s.barFill.Render(strings.Repeat("█", filled)) + s.barEmpty.Render(strings.Repeat("░", width-filled)) + "]"
}

func checkedLine(report Report) string {
	parts := make([]string, 0, 2)
	if !report.CheckedAt.IsZero() {
		parts = append(parts, "checked "+report.CheckedAt.Format("15:04:05"))
	}
	if report.Latency > 0 {
		parts = append(parts, "in "+formatLatency(report.Latency))
	}
	return strings.Join(parts, " ")
}

func formatLatency(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func serverLabel(server string) string {
	if strings.TrimSpace(server) == "" {
		return "n/a"
	}
	return server
}
