package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"procscribe/app/client/llm"
	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/prompt"
	"procscribe/app/util/textnorm"

	"github.com/samber/oops"
)

// ModelExtractor asks the extraction model for a patch of the prior state.
type ModelExtractor struct {
	client  llm.JSONCompleter
	prompts *prompt.Service
}

func NewModelExtractor(client llm.JSONCompleter, prompts *prompt.Service) *ModelExtractor {
	return &ModelExtractor{
		client:  client,
		prompts: prompts,
	}
}

// Extract returns an empty patch when the model answer cannot be parsed. Only transport
// failures are reported as errors.
func (m *ModelExtractor) Extract(ctx context.Context, prev *process.State, window []chat.Message) (process.Patch, error) {
	tmpl, err := m.prompts.Get(prompt.Extractor)
	if err != nil {
		return process.Patch{}, fmt.Errorf("failed to load extractor prompt: %w", err)
	}

	stateJSON, err := json.Marshal(prev)
	if err != nil {
		return process.Patch{}, oops.In("extract").Wrapf(err, "failed to marshal state")
	}

	result, err := m.client.CompleteJSON(ctx, prompt.Render(tmpl, map[string]any{
		"state":    string(stateJSON),
		"messages": FormatMessages(window),
	}))
	if err != nil {
		return process.Patch{}, oops.In("extract").Wrapf(err, "failed to call extraction model")
	}

	patch, err := ParsePatch(result)
	if err != nil {
		slog.WarnContext(ctx, "Failed to parse extraction response",
			"error", err,
			"length", len(result),
		)
		return process.Patch{}, nil
	}

	return patch, nil
}

// ParsePatch reads a patch from raw model output, tolerating reasoning blocks, fences and prose.
func ParsePatch(raw string) (process.Patch, error) {
	var patch process.Patch

	cleaned := llm.CleanJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return patch, oops.In("extract").Errorf("no JSON object in model response")
	}

	if err := json.Unmarshal([]byte(cleaned), &patch); err != nil {
		return process.Patch{}, oops.In("extract").Wrapf(err, "failed to unmarshal patch")
	}

	if patch.Graph != nil && len(patch.Graph.Nodes) == 0 {
		patch.Graph = nil
	}
	// The diagram source only ever comes from the caller.
	patch.RawDiagramSource = ""

	return patch, nil
}

// FormatMessages renders a window as "role: text" lines with attachments and hidden blocks removed.
func FormatMessages(messages []chat.Message) string {
	var sb strings.Builder

	for _, m := range messages {
		text := textnorm.Normalize(m.Text)
		if text == "" {
			continue
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return strings.TrimSpace(sb.String())
}
