package extract

import (
	"regexp"
	"strings"

	"procscribe/app/domain/process"
)

const months = `(?:января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)`

const dateExpr = `(\d{1,2}[./]\d{1,2}[./]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}[ \t]+` + months + `(?:[ \t]+\d{4}(?:[ \t]*г\.?)?)?)`

var (
	datePattern = regexp.MustCompile(`(?i)\b` + dateExpr)
	meetingWord = regexp.MustCompile(`(?i)встреч|совещан|созвон|собрани|переговор`)
	onlyDate    = regexp.MustCompile(`(?i)^(?:дата[ \t]*[:—–-]?[ \t]*)?` + dateExpr + `[ \t.]*$`)
)

// applyMeetingFallbacks picks up a meeting date mentioned in prose, or a bare date sent as the
// answer to a clarification request.
func applyMeetingFallbacks(patch *process.Patch, text string) {
	if patch.Meeting.Date != "" {
		return
	}

	if onlyDate.MatchString(strings.TrimSpace(text)) || meetingWord.MatchString(text) {
		if m := datePattern.FindStringSubmatch(text); m != nil {
			patch.Meeting.Date = cleanValue(m[1])
		}
	}
}
