package markup

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

var tagPattern = regexp.MustCompile(`</?strong>|</?em>|<br>|<hr>|<div class="source-header">|</div>`)

type Theme struct {
	Text   lipgloss.Style
	Strong lipgloss.Style
	Em     lipgloss.Style
	Source lipgloss.Style
	Rule   lipgloss.Style
}

func DefaultTheme() Theme {
	return Theme{
		Text:   lipgloss.NewStyle(),
		Strong: lipgloss.NewStyle().Bold(true),
		Em:     lipgloss.NewStyle().Italic(true),
		Source: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Rule:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

// Render turns formatted markup into styled terminal text. Tags outside the
// formatter's subset are left as literal text. width bounds the divider; a
// non-positive width uses 40 columns.
func Render(markup string, width int, theme Theme) string {
	if width <= 0 {
		width = 40
	}
	markup = Sanitize(markup)

	var (
		b       strings.Builder
		bold    int
		italic  int
		header  bool
		cursor  int
		current = func() lipgloss.Style {
			style := theme.Text
			if header {
				style = theme.Source
			}
			if bold > 0 {
				style = style.Inherit(theme.Strong).Bold(true)
			}
			if italic > 0 {
				style = style.Inherit(theme.Em).Italic(true)
			}
			return style
		}
	)

	writeText := func(text string) {
		if text == "" {
			return
		}
		b.WriteString(current().Render(text))
	}

	for _, loc := range tagPattern.FindAllStringIndex(markup, -1) {
		writeText(markup[cursor:loc[0]])
		cursor = loc[1]

		switch markup[loc[0]:loc[1]] {
		case TagStrong:
			bold++
		case TagStrongClose:
			if bold > 0 {
				bold--
			}
		case TagEm:
			italic++
		case TagEmClose:
			if italic > 0 {
				italic--
			}
		case TagBreak:
			b.WriteString("\n")
		case TagRule:
			b.WriteString(theme.Rule.Render(strings.Repeat("─", width)))
		case TagSourceHeader:
			header = true
		case TagDivClose:
			header = false
			b.WriteString("\n")
		}
	}
	writeText(markup[cursor:])

	return b.String()
}

// Plain strips the markup subset, keeping line breaks. It is used for
// clipboard copies and non-terminal output.
func Plain(markup string) string {
	return tagPattern.ReplaceAllStringFunc(Sanitize(markup), func(tag string) string {
		switch tag {
		case TagBreak, TagDivClose:
			return "\n"
		case TagRule:
			return "---"
		default:
			return ""
		}
	})
}

// Sanitize drops control characters other than newline and tab, so text from
// the service cannot carry terminal escape sequences.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, text)
}
