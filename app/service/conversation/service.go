package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/diagram"
	"procscribe/app/service/document"
	"procscribe/app/service/extract"
	"procscribe/app/service/intent"
	"procscribe/app/service/queue"
	"procscribe/app/service/store"

	"github.com/samber/do"
)

const maxTurnDuration = 2 * time.Minute

type Extractor interface {
	Extract(ctx context.Context, prev *process.State, messages []chat.Message) []process.Patch
}

type Writer interface {
	Reply(ctx context.Context, messages []chat.Message) (string, error)
	Protocol(ctx context.Context, state *process.State, messages []chat.Message) (string, error)
	Edit(ctx context.Context, doc string, messages []chat.Message) (document.EditResult, error)
}

type Service struct {
	router    *intent.Router
	extractor Extractor
	writer    Writer
	renderer  *diagram.Renderer
	store     *store.Service
	queue     *queue.Service
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*intent.Router](di),
		do.MustInvoke[*extract.Service](di),
		do.MustInvoke[*document.Writer](di),
		do.MustInvoke[*diagram.Renderer](di),
		do.MustInvoke[*store.Service](di),
		do.MustInvoke[*queue.Service](di),
	), nil
}

func NewService(
	router *intent.Router,
	extractor Extractor,
	writer Writer,
	renderer *diagram.Renderer,
	storeSvc *store.Service,
	queueSvc *queue.Service,
) *Service {
	return &Service{
		router:    router,
		extractor: extractor,
		writer:    writer,
		renderer:  renderer,
		store:     storeSvc,
		queue:     queueSvc,
	}
}

// ProcessTurn runs one turn: route, then either reply or extract, merge and update the artifact.
// Model failures never surface as errors; they produce an apology and leave state and document
// as they were.
func (s *Service) ProcessTurn(ctx context.Context, req TurnRequest) TurnResult {
	ctx, cancel := context.WithTimeout(ctx, maxTurnDuration)
	defer cancel()

	started := time.Now()

	prev := req.State
	if prev == nil {
		prev = &process.State{}
	}
	if req.Kind == "" {
		req.Kind = store.KindProtocol
	}

	result := TurnResult{
		Document: req.Document,
		State:    prev,
		Diagram:  prev.RawDiagramSource,
	}

	result.Decision = s.router.Route(ctx, intent.Turn{
		Messages:       req.Messages,
		DocumentExists: strings.TrimSpace(req.Document) != "",
	})

	switch {
	case result.Decision.Route == intent.RouteChat:
		s.chat(ctx, req, &result)
	case s.isEdit(req):
		s.edit(ctx, req, prev, &result)
	default:
		s.generate(ctx, req, prev, &result)
	}

	slog.Info("Processed turn",
		"kind", req.Kind,
		"route", result.Decision.Route,
		"reason", result.Decision.Reason,
		"missing", len(result.Missing),
		"duration", time.Since(started),
	)

	return result
}

// isEdit tells an edit of the existing document from a request to (re)generate it.
func (s *Service) isEdit(req TurnRequest) bool {
	if strings.TrimSpace(req.Document) == "" {
		return false
	}

	idx := chat.LastOf(req.Messages, chat.RoleUser)
	if idx < 0 {
		return false
	}
	text := req.Messages[idx].Text

	if prevAssistant, ok := chat.PreviousAssistant(req.Messages); ok && intent.AsksClarification(prevAssistant.Text) {
		return false
	}

	return !intent.IsGenerationRequest(text) && !intent.IsDocumentCommand(text)
}

func (s *Service) chat(ctx context.Context, req TurnRequest, result *TurnResult) {
	reply, err := s.writer.Reply(ctx, req.Messages)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to generate chat reply", "error", err)
		result.Reply = replyApology
		return
	}

	result.Reply = reply
}

func (s *Service) edit(ctx context.Context, req TurnRequest, prev *process.State, result *TurnResult) {
	edit, err := s.writer.Edit(ctx, req.Document, req.Messages)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to edit document", "error", err)
		result.Reply = replyApology
		return
	}

	next := process.Merge(prev, s.extractor.Extract(ctx, prev, req.Messages)...)
	result.State = next

	if len(edit.Patches) == 0 {
		result.Reply = firstNonEmpty(edit.Reply, replyNoEdits)
		return
	}

	result.Document = document.ApplyPatches(req.Document, edit.Patches)
	result.Reply = firstNonEmpty(edit.Reply, replyEdited)

	if req.Kind == store.KindProcess {
		s.renderDiagram(next, result)
	}
}

func (s *Service) generate(ctx context.Context, req TurnRequest, prev *process.State, result *TurnResult) {
	next := process.Merge(prev, s.extractor.Extract(ctx, prev, req.Messages)...)

	if req.Kind == store.KindProcess {
		if strings.TrimSpace(req.Document) == "" {
			result.Document = document.RenderProcess(next)
		} else {
			result.Document = document.ApplyPatches(req.Document, document.StatePatches(next))
		}
		result.State = next
		result.Reply = replyProcessReady
		s.renderDiagram(next, result)
		return
	}

	// The protocol is not produced until every required fact is known; the clarification turn
	// leaves state and document untouched.
	if missing := document.MissingMeetingFields(next); len(missing) > 0 {
		result.Missing = missing
		result.Reply = document.ClarificationText(missing)
		return
	}

	doc, err := s.writer.Protocol(ctx, next, req.Messages)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to generate protocol", "error", err)
		result.Reply = replyApology
		return
	}

	result.Document = doc
	result.State = next
	result.Reply = replyProtocolReady
}

// renderDiagram keeps the rendered source in the state so the next render substitutes into it.
func (s *Service) renderDiagram(next *process.State, result *TurnResult) {
	next.RawDiagramSource = s.renderer.RenderState(next)
	result.Diagram = next.RawDiagramSource
}

// Send appends a user message to a stored conversation, runs the turn and saves the outcome.
// Turns of one conversation are serialized.
func (s *Service) Send(ctx context.Context, id string, message chat.Message) (*store.Conversation, TurnResult, error) {
	var (
		saved  *store.Conversation
		result TurnResult
	)

	err := s.queue.Do(ctx, id, func(ctx context.Context) error {
		conv, err := s.store.Get(id)
		if err != nil {
			return err
		}

		message.Role = chat.RoleUser
		conv.Messages = append(conv.Messages, message)

		result = s.ProcessTurn(ctx, TurnRequest{
			Kind:     conv.Kind,
			Messages: conv.Messages,
			Document: conv.Document,
			State:    conv.State,
		})

		conv.Messages = append(conv.Messages, chat.Message{Role: chat.RoleAssistant, Text: result.Reply})
		conv.Document = result.Document
		conv.State = result.State
		conv.Diagram = result.Diagram

		saved, err = s.store.Save(conv)
		if err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, TurnResult{}, err
	}

	result.State = saved.State

	return saved, result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Update applies fn to the stored conversation and saves the result. fn may set Version to the
// one the client read, so a stale client write is rejected. Updates are serialized with turns.
func (s *Service) Update(ctx context.Context, id string, fn func(conv *store.Conversation) error) (*store.Conversation, error) {
	var saved *store.Conversation

	err := s.queue.Do(ctx, id, func(context.Context) error {
		conv, err := s.store.Get(id)
		if err != nil {
			return err
		}

		if err = fn(conv); err != nil {
			return err
		}

		saved, err = s.store.Save(conv)
		return err
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}
