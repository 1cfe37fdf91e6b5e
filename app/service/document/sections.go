package document

import (
	"regexp"
	"strings"
)

type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
	ModeDelete  Mode = "delete"
)

// Patch is one heading-scoped edit of a Markdown document.
type Patch struct {
	Heading string `json:"heading" validate:"required"`
	Mode    Mode   `json:"mode" validate:"oneof=replace append delete"`
	Content string `json:"content"`
}

var (
	headingLine   = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?[ \t#]*$`)
	fenceLine     = regexp.MustCompile("^ {0,3}(```|~~~)")
	extraBlanks   = regexp.MustCompile(`\n(?:[ \t]*\n){3,}`)
	headingSpaces = regexp.MustCompile(`\s+`)
)

type heading struct {
	line  int
	level int
	text  string
}

// ApplyPatches applies patches in order. Headings inside fenced code blocks are never matched.
func ApplyPatches(markdown string, patches []Patch) string {
	result := strings.ReplaceAll(markdown, "\r\n", "\n")

	for _, p := range patches {
		result = ApplyPatch(result, p)
	}

	return result
}

func ApplyPatch(markdown string, p Patch) string {
	lines := strings.Split(markdown, "\n")
	headings := findHeadings(lines)

	idx := matchHeading(headings, p.Heading)
	if idx < 0 {
		if p.Mode == ModeDelete {
			return markdown
		}
		return collapseBlanks(appendSection(markdown, p))
	}

	h := headings[idx]
	end := sectionEnd(headings, idx, len(lines))

	// Blank lines separating the section from what follows stay in place.
	bodyEnd := end
	for bodyEnd > h.line+1 && strings.TrimSpace(lines[bodyEnd-1]) == "" {
		bodyEnd--
	}

	var section []string
	switch p.Mode {
	case ModeDelete:
		section = nil
		bodyEnd = end
	case ModeAppend:
		section = append(section, lines[h.line:bodyEnd]...)
		if content := contentLines(p.Content, lines[h.line]); len(content) > 0 {
			section = append(section, "")
			section = append(section, content...)
		}
	default:
		section = append(section, lines[h.line])
		section = append(section, contentLines(p.Content, lines[h.line])...)
	}

	out := make([]string, 0, len(lines)+len(section))
	out = append(out, lines[:h.line]...)
	out = append(out, section...)
	out = append(out, lines[bodyEnd:]...)

	return collapseBlanks(strings.Join(out, "\n"))
}

func findHeadings(lines []string) []heading {
	var result []heading

	inFence := false
	for i, line := range lines {
		if fenceLine.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		m := headingLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		result = append(result, heading{line: i, level: len(m[1]), text: m[2]})
	}

	return result
}

// matchHeading finds the first heading equal to target. A target written as a full "## ..."
// line must also match the level; a bare target matches on text alone.
func matchHeading(headings []heading, target string) int {
	target = strings.TrimSpace(target)

	level := 0
	text := target
	if m := headingLine.FindStringSubmatch(target); m != nil {
		level = len(m[1])
		text = m[2]
	}

	want := normalizeHeading(text)
	if want == "" {
		return -1
	}

	for i, h := range headings {
		if level > 0 && h.level != level {
			continue
		}
		if normalizeHeading(h.text) == want {
			return i
		}
	}

	return -1
}

func normalizeHeading(text string) string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`':
			return -1
		}
		return r
	}, text)
	text = headingSpaces.ReplaceAllString(text, " ")

	return strings.Trim(text, " .:")
}

// sectionEnd is the line of the next heading of equal or shallower level, or the end.
func sectionEnd(headings []heading, idx int, total int) int {
	level := headings[idx].level

	for _, h := range headings[idx+1:] {
		if h.level <= level {
			return h.line
		}
	}

	return total
}

// contentLines trims surrounding blank lines and drops a repeated copy of the section heading.
func contentLines(content string, headingText string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.Trim(content, "\n")
	content = strings.TrimRight(content, " \t\n")

	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	if strings.TrimSpace(lines[0]) == strings.TrimSpace(headingText) {
		lines = lines[1:]
		for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
			lines = lines[1:]
		}
	}

	return lines
}

func appendSection(markdown string, p Patch) string {
	title := strings.TrimSpace(p.Heading)
	if m := headingLine.FindStringSubmatch(title); m != nil {
		title = m[2]
	}
	headingText := "## " + title

	var sb strings.Builder

	trimmed := strings.TrimRight(markdown, "\n")
	if strings.TrimSpace(trimmed) != "" {
		sb.WriteString(trimmed)
		sb.WriteString("\n\n")
	}

	sb.WriteString(headingText)
	if content := contentLines(p.Content, headingText); len(content) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(content, "\n"))
	}

	if strings.HasSuffix(markdown, "\n") {
		sb.WriteString("\n")
	}

	return sb.String()
}

func collapseBlanks(markdown string) string {
	return extraBlanks.ReplaceAllString(markdown, "\n\n\n")
}
