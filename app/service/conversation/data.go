package conversation

import (
	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/intent"
	"procscribe/app/service/store"
)

const (
	replyApology       = "Извините, сейчас не получилось обработать запрос. Попробуйте, пожалуйста, ещё раз."
	replyProtocolReady = "Протокол встречи готов."
	replyProcessReady  = "Паспорт процесса обновлён."
	replyEdited        = "Документ обновлён."
	replyNoEdits       = "Не нашёл, что изменить в документе. Уточните, пожалуйста, раздел и правку."
)

// TurnRequest carries everything one turn needs; nothing is kept between calls.
type TurnRequest struct {
	Kind     store.Kind     `json:"kind" validate:"omitempty,oneof=protocol process"`
	Messages []chat.Message `json:"messages"`
	Document string         `json:"document"`
	State    *process.State `json:"state"`
}

type TurnResult struct {
	Decision intent.Decision `json:"decision"`
	Reply    string          `json:"reply"`
	Document string          `json:"document"`
	State    *process.State  `json:"state"`
	Diagram  string          `json:"diagram,omitempty"`
	Missing  []string        `json:"missing,omitempty"`
}
