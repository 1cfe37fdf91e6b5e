package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	patch  process.Patch
	err    error
	window []chat.Message
}

func (f *fakeExtractor) Extract(_ context.Context, _ *process.State, window []chat.Message) (process.Patch, error) {
	f.window = window
	return f.patch, f.err
}

type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func conversation() []chat.Message {
	return []chat.Message{
		{Role: chat.RoleUser, Text: "Меня зовут Иван Иванов, я директор ООО Ромашка"},
		{Role: chat.RoleAssistant, Text: "Цель: не отсюда"},
		{Role: chat.RoleUser, Text: "Цель: сократить сроки поставки"},
		{Role: chat.RoleUser, Text: "спасибо"},
	}
}

func TestServiceExtractOrder(t *testing.T) {
	model := &fakeExtractor{patch: process.Patch{Goal: "уточнённая цель"}}
	s := NewService(model)

	patches := s.Extract(context.Background(), nil, conversation())
	require.Len(t, patches, 3)

	assert.Equal(t, "Иван Иванов", patches[0].Owner.FullName)
	assert.Equal(t, "сократить сроки поставки", patches[1].Goal)
	assert.Equal(t, "уточнённая цель", patches[2].Goal)

	// Model output is applied last and wins.
	state := process.Merge(nil, patches...)
	assert.Equal(t, "уточнённая цель", state.Goal)
	assert.Equal(t, "ООО Ромашка", state.Organization.Name)
}

func TestServiceExtractModelFailure(t *testing.T) {
	s := NewService(&fakeExtractor{err: errors.New("timeout")})

	patches := s.Extract(context.Background(), nil, conversation())
	assert.Len(t, patches, 2)
}

func TestServiceExtractWithoutModel(t *testing.T) {
	s := NewService(nil)

	assert.Empty(t, s.Extract(context.Background(), nil, nil))
	assert.Len(t, s.Extract(context.Background(), nil, conversation()), 2)
}

func TestServiceExtractKeepsStepsAcrossMessages(t *testing.T) {
	s := NewService(nil)

	messages := []chat.Message{
		{Role: chat.RoleUser, Text: "Шаг 1. Приём заявки\n" +
			"Шаг 2. Проверка\n" +
			"Шаг 3. Согласование\n" +
			"Шаг 4. Выдача"},
		{Role: chat.RoleAssistant, Text: "Записал четыре шага."},
		{Role: chat.RoleUser, Text: "Шаг 2. Проверка документов клиента"},
		{Role: chat.RoleUser, Text: "Шаг 5. Архивирование"},
	}

	state := process.Merge(nil, s.Extract(context.Background(), nil, messages)...)

	steps := state.Graph.StepNodes()
	require.Len(t, steps, 5)

	labels := make([]string, 0, len(steps))
	for _, n := range steps {
		labels = append(labels, n.Label)
	}
	assert.Equal(t, []string{
		"Приём заявки",
		"Проверка документов клиента",
		"Согласование",
		"Выдача",
		"Архивирование",
	}, labels)
}

func TestMergeSteps(t *testing.T) {
	prev := []Step{{Number: 1, Label: "a"}, {Number: 3, Label: "c"}}
	later := []Step{{Number: 2, Label: "b"}, {Number: 3, Label: "c2"}}

	got := mergeSteps(prev, later)

	assert.Equal(t, []Step{{Number: 1, Label: "a"}, {Number: 2, Label: "b"}, {Number: 3, Label: "c2"}}, got)
	assert.Equal(t, "c", prev[1].Label)
}

func TestServiceExtractWindow(t *testing.T) {
	model := &fakeExtractor{}
	s := NewService(model)

	messages := make([]chat.Message, 20)
	for i := range messages {
		messages[i] = chat.Message{Role: chat.RoleUser, Text: "привет"}
	}

	s.Extract(context.Background(), nil, messages)
	assert.Len(t, model.window, defaultWindow)
}

func TestParsePatch(t *testing.T) {
	patch, err := ParsePatch("<think>разбираю</think>\n```json\n{\"goal\":\"x\",\"graph\":{\"nodes\":[]},\"rawDiagramSource\":\"<mxfile/>\"}\n```")
	require.NoError(t, err)

	assert.Equal(t, "x", patch.Goal)
	assert.Nil(t, patch.Graph)
	assert.Empty(t, patch.RawDiagramSource)

	_, err = ParsePatch("не знаю")
	assert.Error(t, err)

	_, err = ParsePatch("{\"goal\": [}")
	assert.Error(t, err)
}

func TestModelExtractor(t *testing.T) {
	prompts := prompt.NewService("", time.Minute)
	state := &process.State{Goal: "старая цель"}
	window := []chat.Message{{Role: chat.RoleUser, Text: "Продукт: отчёт"}}

	t.Run("parses answer", func(t *testing.T) {
		client := &fakeCompleter{response: `{"product":"отчёт"}`}

		patch, err := NewModelExtractor(client, prompts).Extract(context.Background(), state, window)
		require.NoError(t, err)

		assert.Equal(t, "отчёт", patch.Product)
		assert.Contains(t, client.prompt, "старая цель")
		assert.Contains(t, client.prompt, "user: Продукт: отчёт")
	})

	t.Run("garbage is an empty patch", func(t *testing.T) {
		client := &fakeCompleter{response: "извините, не могу"}

		patch, err := NewModelExtractor(client, prompts).Extract(context.Background(), state, window)
		require.NoError(t, err)
		assert.True(t, patch.IsEmpty())
	})

	t.Run("transport error", func(t *testing.T) {
		client := &fakeCompleter{err: errors.New("connection refused")}

		_, err := NewModelExtractor(client, prompts).Extract(context.Background(), state, window)
		assert.Error(t, err)
	})
}

func TestFormatMessages(t *testing.T) {
	got := FormatMessages([]chat.Message{
		{Role: chat.RoleUser, Text: "привет<hidden>секрет</hidden>"},
		{Role: chat.RoleAssistant, Text: "  "},
		{Role: chat.RoleAssistant, Text: "здравствуйте"},
	})

	assert.Equal(t, "user: привет\n\nassistant: здравствуйте", got)
	assert.False(t, strings.Contains(got, "секрет"))
}
