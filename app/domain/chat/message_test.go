package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMessageText(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"plain text field", `{"role":"user","text":"привет"}`, "привет"},
		{"string content", `{"role":"user","content":"привет"}`, "привет"},
		{"content parts", `{"role":"user","content":[{"type":"text","text":"a"},{"type":"image"},{"type":"text","text":"b"}]}`, "a\nb"},
		{"nested content object", `{"role":"user","content":{"content":{"text":"глубоко"}}}`, "глубоко"},
		{"parts field", `{"role":"user","parts":[{"text":"x"},{"text":"y"}]}`, "x\ny"},
		{"nothing", `{"role":"user"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m WireMessage
			require.NoError(t, json.Unmarshal([]byte(tt.json), &m))
			assert.Equal(t, tt.want, ExtractMessageText(m))
		})
	}
}

func TestFromWire(t *testing.T) {
	got := FromWire([]WireMessage{
		{Role: "user", Text: "a", HasAttachment: true},
		{Role: "model", Text: "b"},
		{Role: "system", Text: "c"},
	})

	require.Len(t, got, 3)
	assert.Equal(t, RoleUser, got[0].Role)
	assert.True(t, got[0].HasAttachment)
	assert.Equal(t, RoleAssistant, got[1].Role)
	assert.Equal(t, RoleUser, got[2].Role)
}

func TestPreviousAssistant(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Text: "1"},
		{Role: RoleAssistant, Text: "вопрос"},
		{Role: RoleUser, Text: "да"},
	}

	prev, ok := PreviousAssistant(messages)
	require.True(t, ok)
	assert.Equal(t, "вопрос", prev.Text)

	_, ok = PreviousAssistant(messages[:1])
	assert.False(t, ok)

	assert.Len(t, Window(messages, 2), 2)
	assert.Len(t, Window(messages, 0), 3)
}
