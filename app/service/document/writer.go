package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"procscribe/app/client/llm"
	"procscribe/app/config"
	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/extract"
	"procscribe/app/service/prompt"
	"procscribe/app/util/textnorm"

	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var ErrNoModel = errors.New("writer model is not configured")

const historyWindow = 12

// Writer produces the model-written texts: chat replies, meeting protocols and edit patches.
type Writer struct {
	client   llm.Client
	prompts  *prompt.Service
	validate *validator.Validate
}

func New(di *do.Injector) (*Writer, error) {
	cfg := do.MustInvoke[*config.Config](di)
	prompts := do.MustInvoke[*prompt.Service](di)

	if cfg.LLM.Writer == nil {
		slog.Warn("No writer model configured, chat replies and protocols are unavailable")
		return NewWriter(nil, prompts), nil
	}

	client, err := llm.NewChain(*cfg.LLM.Writer, llm.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}

	return NewWriter(client, prompts), nil
}

// NewWriter builds a writer; client may be nil, in which case every call fails with ErrNoModel.
func NewWriter(client llm.Client, prompts *prompt.Service) *Writer {
	return &Writer{
		client:   client,
		prompts:  prompts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Reply answers the latest user message. Attachment bodies stripped from the messages are
// passed to the model separately.
func (w *Writer) Reply(ctx context.Context, messages []chat.Message) (string, error) {
	if w.client == nil {
		return "", noModel()
	}

	window := chat.Window(messages, historyWindow)

	text, err := w.complete(ctx, prompt.Chat, map[string]any{
		"attachments": formatAttachments(window),
		"messages":    extract.FormatMessages(window),
	})
	if err != nil {
		return "", err
	}

	return llm.StripReasoning(text), nil
}

// Protocol writes the meeting protocol. The caller checks MissingMeetingFields first.
func (w *Writer) Protocol(ctx context.Context, state *process.State, messages []chat.Message) (string, error) {
	if w.client == nil {
		return "", noModel()
	}

	text, err := w.complete(ctx, prompt.Protocol, map[string]any{
		"date":       state.Meeting.Date,
		"agenda":     bulletList(state.Meeting.Agenda),
		"customer":   strings.Join(state.Meeting.CustomerSide, ", "),
		"contractor": strings.Join(state.Meeting.ContractorSide, ", "),
		"messages":   extract.FormatMessages(chat.Window(messages, historyWindow)),
	})
	if err != nil {
		return "", err
	}

	return unfenceMarkdown(llm.StripReasoning(text)), nil
}

type EditResult struct {
	Reply   string  `json:"reply"`
	Patches []Patch `json:"patches"`
}

// Edit asks the model for patches against the current document.
func (w *Writer) Edit(ctx context.Context, document string, messages []chat.Message) (EditResult, error) {
	if w.client == nil {
		return EditResult{}, noModel()
	}

	tmpl, err := w.prompts.Get(prompt.Edit)
	if err != nil {
		return EditResult{}, fmt.Errorf("failed to load edit prompt: %w", err)
	}

	raw, err := w.client.CompleteJSON(ctx, prompt.Render(tmpl, map[string]any{
		"document": document,
		"messages": extract.FormatMessages(chat.Window(messages, historyWindow)),
	}))
	if err != nil {
		return EditResult{}, oops.In("document").Wrapf(err, "failed to request edit")
	}

	return w.ParseEdit(raw)
}

// ParseEdit reads the edit answer. Patches failing validation are dropped one by one; only an
// unreadable answer is an error.
func (w *Writer) ParseEdit(raw string) (EditResult, error) {
	var result EditResult

	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &result); err != nil {
		return EditResult{}, oops.In("document").Wrapf(err, "failed to unmarshal edit response")
	}

	valid := make([]Patch, 0, len(result.Patches))
	for _, p := range result.Patches {
		p.Mode = Mode(strings.ToLower(strings.TrimSpace(string(p.Mode))))
		if err := w.validate.Struct(p); err != nil {
			slog.Warn("Dropping invalid document patch",
				"heading", p.Heading,
				"mode", p.Mode,
				"error", err,
			)
			continue
		}
		valid = append(valid, p)
	}

	result.Reply = strings.TrimSpace(result.Reply)
	result.Patches = valid

	return result, nil
}

func noModel() error {
	return oops.In("document").Code("no_model").Wrap(ErrNoModel)
}

func (w *Writer) complete(ctx context.Context, name string, values map[string]any) (string, error) {
	tmpl, err := w.prompts.Get(name)
	if err != nil {
		return "", fmt.Errorf("failed to load %s prompt: %w", name, err)
	}

	text, err := w.client.Complete(ctx, prompt.Render(tmpl, values))
	if err != nil {
		return "", oops.In("document").With("prompt", name).Wrapf(err, "failed to complete")
	}

	return text, nil
}

func formatAttachments(messages []chat.Message) string {
	var sb strings.Builder

	for _, m := range messages {
		for _, a := range textnorm.Attachments(m.Text) {
			fmt.Fprintf(&sb, "Вложение %q:\n%s\n\n", a.Name, a.Text)
		}
	}

	if sb.Len() == 0 {
		return ""
	}

	return "Вложения пользователя:\n\n" + strings.TrimSpace(sb.String())
}

var wholeFence = regexp.MustCompile("(?s)^```(?:markdown|md)?[ \t]*\n(.*?)\n?```$")

// unfenceMarkdown unwraps an answer the model put entirely inside a code fence.
func unfenceMarkdown(text string) string {
	text = strings.TrimSpace(text)
	if m := wholeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	return text
}
