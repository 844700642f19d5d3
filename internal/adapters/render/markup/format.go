// Package markup converts assistant and user message bodies into the small
// markup subset shown in the transcript, and renders that subset for a
// terminal.
package markup

import (
	"regexp"
	"strings"
)

const (
	TagStrong       = "<strong>"
	TagStrongClose  = "</strong>"
	TagEm           = "<em>"
	TagEmClose      = "</em>"
	TagBreak        = "<br>"
	TagRule         = "<hr>"
	TagSourceHeader = `<div class="source-header">`
	TagDivClose     = "</div>"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	emPattern     = regexp.MustCompile(`\*(.*?)\*`)
	sourcePattern = regexp.MustCompile(`📄 <strong>From: (.*?)</strong>`)
)

// FormatMessage applies the transcript substitutions in a fixed order: bold,
// emphasis, line breaks, source headers, then dividers. The source header is
// matched after bold conversion, so it looks for the already converted
// "<strong>From: ...</strong>" form.
func FormatMessage(content string) string {
	out := boldPattern.ReplaceAllString(content, TagStrong+"$1"+TagStrongClose)
	out = emPattern.ReplaceAllString(out, TagEm+"$1"+TagEmClose)
	out = strings.ReplaceAll(out, "\n", TagBreak)
	out = sourcePattern.ReplaceAllString(out, TagSourceHeader+"📄 "+TagStrong+"From: $1"+TagStrongClose+TagDivClose)
	return strings.ReplaceAll(out, "---", TagRule)
}
