// Package textnorm strips server-injected content from raw message text before any
// keyword or field matching looks at it.
package textnorm

import (
	"regexp"
	"strings"
)

// Attachment blocks are injected by the upload layer as
//
//	[[ATTACHMENT name="report.docx"]]
//	...extracted text...
//	[[/ATTACHMENT]]
var (
	attachmentPattern = regexp.MustCompile(`(?s)\[\[ATTACHMENT(?:\s+name="([^"]*)")?\]\](.*?)\[\[/ATTACHMENT\]\]`)
	hiddenPattern     = regexp.MustCompile(`(?is)<hidden>.*?</hidden>`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

type Attachment struct {
	Name string
	Text string
}

// Normalize removes attachment and hidden-instruction blocks and canonicalizes line endings.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := NormalizeNewlines(raw)
	text = attachmentPattern.ReplaceAllString(text, "")
	text = hiddenPattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// NormalizeNewlines converts \r\n and bare \r to \n.
func NormalizeNewlines(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return strings.ReplaceAll(raw, "\r", "\n")
}

// Attachments returns the bodies of injected attachment blocks in order of appearance.
func Attachments(raw string) []Attachment {
	text := NormalizeNewlines(raw)

	matches := attachmentPattern.FindAllStringSubmatch(text, -1)
	result := make([]Attachment, 0, len(matches))

	for _, m := range matches {
		result = append(result, Attachment{
			Name: strings.TrimSpace(m[1]),
			Text: strings.TrimSpace(m[2]),
		})
	}

	return result
}

// Lower returns the normalized text lowercased with whitespace runs collapsed, the form the
// keyword predicates work on.
func Lower(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(Normalize(raw))), " ")
}
