package intent

import (
	"context"
	"log/slog"

	"procscribe/app/client/llm"
	"procscribe/app/config"
	"procscribe/app/domain/chat"
	"procscribe/app/service/prompt"

	"github.com/samber/do"
)

type Route string

const (
	RouteChat     Route = "chat"
	RouteDocument Route = "document"
)

// Decision is the per-turn routing result. Reason is for logs only.
type Decision struct {
	Route  Route  `json:"route"`
	Reason string `json:"reason"`
}

type Turn struct {
	Messages       []chat.Message
	DocumentExists bool
}

type Router struct {
	classifier Classifier
}

func New(di *do.Injector) (*Router, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.LLM.Classifier == nil {
		slog.Info("No classifier model configured, using keyword classifier")
		return NewRouter(HeuristicClassifier{}), nil
	}

	client := llm.NewOpenAI(*cfg.LLM.Classifier)
	return NewRouter(NewModelClassifier(client, do.MustInvoke[*prompt.Service](di))), nil
}

func NewRouter(classifier Classifier) *Router {
	if classifier == nil {
		classifier = HeuristicClassifier{}
	}

	return &Router{classifier: classifier}
}

// Route evaluates the deterministic overrides first; the classifier only sees turns none of
// them pinned. Ambiguous short replies like "да" never reach the classifier when the
// conversation context already explains them.
func (r *Router) Route(ctx context.Context, turn Turn) Decision {
	idx := chat.LastOf(turn.Messages, chat.RoleUser)
	if idx < 0 {
		return Decision{Route: RouteChat, Reason: "no user message"}
	}

	text := turn.Messages[idx].Text
	prev, hasPrev := chat.PreviousAssistant(turn.Messages)

	if turn.DocumentExists && IsAttachmentReadRequest(text) && !IsEditRequest(text) {
		return Decision{Route: RouteChat, Reason: "attachment read request"}
	}

	if turn.DocumentExists {
		if IsEditRequest(text) {
			return Decision{Route: RouteDocument, Reason: "edit request with target"}
		}
		if hasPrev && IsConfirmation(text) && ProposesChanges(prev.Text) {
			return Decision{Route: RouteDocument, Reason: "confirmation of proposed changes"}
		}
	}

	if hasPrev && AsksClarification(prev.Text) && !IsAttachmentReadRequest(text) {
		return Decision{Route: RouteDocument, Reason: "answer to clarification request"}
	}

	stage := StageInitial
	switch {
	case hasPrev && AsksClarification(prev.Text):
		stage = StageClarifying
	case turn.DocumentExists:
		stage = StageDocumentReady
	}

	label, err := r.classifier.Classify(ctx, stage, text)
	if err != nil {
		slog.WarnContext(ctx, "Intent classification failed, routing to chat",
			"stage", stage,
			"error", err,
		)
		return Decision{Route: RouteChat, Reason: "classifier failed"}
	}

	switch label {
	case LabelGenerate, LabelEdit:
		return Decision{Route: RouteDocument, Reason: "classified as " + string(label)}
	default:
		return Decision{Route: RouteChat, Reason: "classified as " + string(label)}
	}
}
