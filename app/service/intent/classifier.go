package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"procscribe/app/client/llm"
	"procscribe/app/service/prompt"
)

// Label is the closed set the fallback classifier may answer with.
type Label string

const (
	LabelGenerate  Label = "generate"
	LabelEdit      Label = "edit"
	LabelQuestion  Label = "question"
	LabelSmalltalk Label = "smalltalk"
	LabelOther     Label = "other"
)

var knownLabels = []Label{LabelGenerate, LabelEdit, LabelQuestion, LabelSmalltalk, LabelOther}

// Stage tells the classifier where the conversation is.
type Stage string

const (
	StageInitial       Stage = "initial"
	StageDocumentReady Stage = "document_ready"
	StageClarifying    Stage = "clarifying"
)

type Classifier interface {
	Classify(ctx context.Context, stage Stage, text string) (Label, error)
}

// ParseLabel accepts a bare label or a label embedded in common model decorations.
func ParseLabel(raw string) (Label, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "`\"'. \n")

	for _, l := range knownLabels {
		if s == string(l) {
			return l, true
		}
	}

	return "", false
}

// ModelClassifier asks a JSON-mode chat model for the label.
type ModelClassifier struct {
	client  llm.JSONCompleter
	prompts *prompt.Service
}

func NewModelClassifier(client llm.JSONCompleter, prompts *prompt.Service) *ModelClassifier {
	return &ModelClassifier{
		client:  client,
		prompts: prompts,
	}
}

type classifierResponse struct {
	Intent string `json:"intent"`
}

func (c *ModelClassifier) Classify(ctx context.Context, stage Stage, text string) (Label, error) {
	tmpl, err := c.prompts.Get(prompt.Classifier)
	if err != nil {
		return "", fmt.Errorf("failed to load classifier prompt: %w", err)
	}

	result, err := c.client.CompleteJSON(ctx, prompt.Render(tmpl, map[string]any{
		"stage":   stage,
		"message": text,
		"labels":  strings.Join(labelStrings(), ", "),
	}))
	if err != nil {
		return "", fmt.Errorf("failed to classify: %w", err)
	}

	var response classifierResponse
	if err = json.Unmarshal([]byte(llm.CleanJSON(result)), &response); err != nil {
		if label, ok := ParseLabel(result); ok {
			return label, nil
		}
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	label, ok := ParseLabel(response.Intent)
	if !ok {
		return "", fmt.Errorf("unknown intent label %q", response.Intent)
	}

	return label, nil
}

func labelStrings() []string {
	result := make([]string, 0, len(knownLabels))
	for _, l := range knownLabels {
		result = append(result, string(l))
	}
	return result
}

// HeuristicClassifier is the keyword-only fallback used when no model is configured.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Classify(_ context.Context, stage Stage, text string) (Label, error) {
	switch {
	case IsGenerationRequest(text):
		return LabelGenerate, nil
	case stage == StageDocumentReady && IsEditRequest(text):
		return LabelEdit, nil
	case strings.Contains(text, "?"):
		return LabelQuestion, nil
	case IsConfirmation(text):
		return LabelSmalltalk, nil
	default:
		return LabelOther, nil
	}
}
