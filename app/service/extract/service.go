package extract

import (
	"context"
	"log/slog"
	"time"

	"procscribe/app/client/llm"
	"procscribe/app/config"
	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/prompt"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const defaultWindow = 8

type Extractor interface {
	Extract(ctx context.Context, prev *process.State, window []chat.Message) (process.Patch, error)
}

type Service struct {
	model  Extractor
	window int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.LLM.Extractor == nil {
		slog.Info("No extractor model configured, using heuristic extraction only")
		return NewService(nil), nil
	}

	client, err := llm.NewChain(*cfg.LLM.Extractor, llm.WithTemperature(0))
	if err != nil {
		return nil, err
	}

	return NewService(NewModelExtractor(client, do.MustInvoke[*prompt.Service](di))), nil
}

// NewService builds the extraction service; model may be nil.
func NewService(model Extractor) *Service {
	return &Service{
		model:  model,
		window: defaultWindow,
	}
}

// Extract returns the patches for one turn in application order: one heuristic patch per user
// message, oldest first, a heuristic graph patch built from the steps of the whole history, then
// the model patch. Empty patches are dropped. Model failures are logged and yield no patch.
func (s *Service) Extract(ctx context.Context, prev *process.State, messages []chat.Message) []process.Patch {
	var (
		heuristic []process.Patch
		model     process.Patch
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var texts []string
		for _, m := range messages {
			if m.Role == chat.RoleUser {
				texts = append(texts, m.Text)
			}
		}
		heuristic = HeuristicHistory(texts)
		return nil
	})

	if s.model != nil {
		g.Go(func() error {
			started := time.Now()

			p, err := s.model.Extract(gCtx, prev, chat.Window(messages, s.window))
			if err != nil {
				slog.WarnContext(ctx, "Model extraction failed",
					"error", err,
					"duration", time.Since(started),
				)
				return nil
			}

			model = p
			return nil
		})
	}

	_ = g.Wait()

	if !model.IsEmpty() {
		return append(heuristic, model)
	}

	return heuristic
}
