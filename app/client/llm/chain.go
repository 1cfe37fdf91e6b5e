package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"procscribe/app/config"

	"github.com/samber/oops"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

var _ Client = (*Chain)(nil)

// Chain talks to the model through langchaingo; used for the longer extraction and writing calls.
type Chain struct {
	model       llms.Model
	name        string
	temperature float64
	maxTokens   int
}

type ChainOption func(*Chain)

func WithTemperature(t float64) ChainOption {
	return func(c *Chain) { c.temperature = t }
}

func WithMaxTokens(n int) ChainOption {
	return func(c *Chain) { c.maxTokens = n }
}

func NewChain(cfg config.ModelConfig, opts ...ChainOption) (*Chain, error) {
	model, err := lcopenai.New(
		lcopenai.WithToken(cfg.Token),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		lcopenai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, oops.In("llm").With("model", cfg.Model).Wrapf(err, "failed to create langchain model")
	}

	c := &Chain{
		model:       model,
		name:        cfg.Model,
		temperature: 0.2,
		maxTokens:   4000,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt)
}

func (c *Chain) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, llms.WithJSONMode())
}

func (c *Chain) generate(ctx context.Context, prompt string, extra ...llms.CallOption) (string, error) {
	opts := append([]llms.CallOption{
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	}, extra...)

	result, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, opts...)
	if err != nil {
		return "", oops.In("llm").With("model", c.name).Wrapf(err, "failed to generate")
	}

	return strings.TrimSpace(result), nil
}

var _ callbacks.Handler = LogCallbackHandler{}

// LogCallbackHandler reports model failures and sizes through slog; everything else is a no-op.
type LogCallbackHandler struct {
	callbacks.SimpleHandler
}

func (LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if res == nil || len(res.Choices) == 0 {
		return
	}

	slog.DebugContext(ctx, "LLM generate content end",
		"stop_reason", res.Choices[0].StopReason,
		"length", len(res.Choices[0].Content),
	)
}

func (LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "LLM error", "error", err)
}
