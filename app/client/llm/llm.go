// Package llm wraps the OpenAI-compatible model endpoints the pipeline talks to. Callers see
// plain text in and text out; the model is never trusted to return well-formed output.
package llm

import (
	"context"
	"regexp"
	"strings"
)

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// JSONCompleter asks the model for a JSON object response.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

type Client interface {
	Completer
	JSONCompleter
}

var (
	thinkPattern = regexp.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`)
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n?(.*?)```")
)

// StripReasoning removes <think> blocks and an unterminated leading one.
func StripReasoning(text string) string {
	text = thinkPattern.ReplaceAllString(text, "")

	lower := strings.ToLower(text)
	if idx := strings.Index(lower, "<think>"); idx >= 0 {
		text = text[:idx]
	}

	return strings.TrimSpace(text)
}

// CleanJSON strips reasoning blocks and code fences and cuts out the outermost JSON object.
// It returns the cleaned text unchanged when no object is present.
func CleanJSON(raw string) string {
	text := StripReasoning(raw)

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}

	return text
}
