package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"procscribe/app/config"

	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

var _ Client = (*OpenAI)(nil)

// OpenAI calls chat completions directly. Used where a strict JSON object response matters.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg config.ModelConfig) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (c *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, nil)
}

func (c *OpenAI) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *OpenAI) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	aiResponse, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxCompletionTokens: 1000,
			Temperature:         0,
			ResponseFormat:      format,
		},
	)
	if err != nil {
		return "", oops.In("llm").With("model", c.model).Wrapf(err, "failed to create chat completion")
	}

	if len(aiResponse.Choices) == 0 {
		return "", oops.In("llm").With("model", c.model).Errorf("no chat completion found")
	}

	result := strings.TrimSpace(aiResponse.Choices[0].Message.Content)
	if result == "" {
		return "", fmt.Errorf("empty completion from %s", c.model)
	}

	return result, nil
}
