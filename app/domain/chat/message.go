package chat

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role          Role   `json:"role"`
	Text          string `json:"text"`
	HasAttachment bool   `json:"hasAttachment,omitempty"`
}

// LastOf returns the index of the last message with the given role, or -1.
func LastOf(messages []Message, role Role) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return i
		}
	}

	return -1
}

// PreviousAssistant returns the assistant message right before the latest user message.
func PreviousAssistant(messages []Message) (Message, bool) {
	userIdx := LastOf(messages, RoleUser)
	if userIdx < 0 {
		return Message{}, false
	}

	for i := userIdx - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i], true
		}
	}

	return Message{}, false
}

// Window returns at most size trailing messages.
func Window(messages []Message, size int) []Message {
	if size <= 0 || len(messages) <= size {
		return messages
	}

	return messages[len(messages)-size:]
}

// WireMessage is the message shape accepted at the transport boundary. Text may live in
// content (string, object or array of parts) or in parts.
type WireMessage struct {
	Role          string          `json:"role"`
	Content       json.RawMessage `json:"content,omitempty"`
	Text          string          `json:"text,omitempty"`
	Parts         []wirePart      `json:"parts,omitempty"`
	HasAttachment bool            `json:"hasAttachment,omitempty"`
}

type wirePart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// ExtractMessageText flattens any supported wire shape into plain text.
func ExtractMessageText(m WireMessage) string {
	var chunks []string

	if m.Text != "" {
		chunks = append(chunks, m.Text)
	}

	chunks = append(chunks, contentText(m.Content)...)

	for _, p := range m.Parts {
		if p.Text != "" {
			chunks = append(chunks, p.Text)
		}
	}

	return strings.Join(chunks, "\n")
}

func contentText(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var parts []wirePart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var result []string
		for _, p := range parts {
			if p.Text != "" {
				result = append(result, p.Text)
			}
		}
		return result
	}

	var obj struct {
		Text    string          `json:"text"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		var result []string
		if obj.Text != "" {
			result = append(result, obj.Text)
		}
		return append(result, contentText(obj.Content)...)
	}

	return nil
}

// FromWire converts transport messages; unknown roles are treated as user messages.
func FromWire(wire []WireMessage) []Message {
	result := make([]Message, 0, len(wire))

	for _, w := range wire {
		role := RoleUser
		if strings.EqualFold(w.Role, string(RoleAssistant)) || strings.EqualFold(w.Role, "model") {
			role = RoleAssistant
		}

		result = append(result, Message{
			Role:          role,
			Text:          ExtractMessageText(w),
			HasAttachment: w.HasAttachment,
		})
	}

	return result
}
