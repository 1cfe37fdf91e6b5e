// Package diagram projects a process state onto a fixed draw.io template. Every semantic field
// owns a cell with a stable id; rendering only rewrites attributes of those cells, so cell ids and
// geometry never change between renders.
package diagram

import (
	_ "embed"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"procscribe/app/domain/process"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

//go:embed template.drawio
var Template string

const (
	MaxSteps     = 4
	MaxConsumers = 3

	HideDirective = "opacity=0;textOpacity=0;"
	lineBreak     = "&lt;br&gt;"
)

type Renderer struct {
	template string
}

func New(_ *do.Injector) (*Renderer, error) {
	return NewRenderer(Template), nil
}

func NewRenderer(template string) *Renderer {
	return &Renderer{template: template}
}

// RenderState renders onto the diagram source stored in the state, or onto the template when
// the state has none yet.
func (r *Renderer) RenderState(state *process.State) string {
	source := r.template
	if state != nil && strings.TrimSpace(state.RawDiagramSource) != "" {
		source = state.RawDiagramSource
	}

	return Render(source, state)
}

// slotValue is what one render writes into one cell.
type slotValue struct {
	id     string
	value  *string
	hidden bool
	source string
}

// Render substitutes slot values into source. Source that is not well-formed XML is returned
// unchanged. Cells missing from source are skipped.
func Render(source string, state *process.State) string {
	if err := checkWellFormed(source); err != nil {
		slog.Warn("Diagram source is not well-formed, leaving it unchanged",
			"error", err,
		)
		return source
	}

	if state == nil {
		state = &process.State{}
	}

	result := source
	for _, slot := range slots(state) {
		result = applySlot(result, slot)
	}

	return result
}

func slots(s *process.State) []slotValue {
	text := func(id, value string) slotValue {
		return slotValue{id: id, value: &value}
	}

	result := []slotValue{
		text("org-name", s.Organization.Name),
		text("process-name", s.Process.Name),
		text("goal", s.Goal),
		text("owner-name", s.Owner.FullName),
		text("owner-position", s.Owner.Position),
		text("boundary-start", s.Boundaries.Start),
		text("boundary-end", s.Boundaries.End),
	}

	steps := s.Graph.StepNodes()
	for i := 0; i < MaxSteps; i++ {
		n := strconv.Itoa(i + 1)
		stepID := "step-" + n

		if i >= len(steps) {
			empty := ""
			result = append(result,
				slotValue{id: stepID, value: &empty, hidden: true},
				slotValue{id: stepID + "-details", value: &empty, hidden: true},
				slotValue{id: "edge-" + stepID, hidden: true},
			)
			continue
		}

		label := steps[i].Label
		details := steps[i].Details
		if i == MaxSteps-1 && len(steps) > MaxSteps {
			rest := pie.Map(steps[MaxSteps:], func(n process.Node) string { return n.Label })
			details = strings.TrimSpace(details + "\nДалее: " + strings.Join(rest, ", "))
		}

		result = append(result,
			slotValue{id: stepID, value: &label},
			slotValue{id: stepID + "-details", value: &details, hidden: strings.TrimSpace(details) == ""},
			slotValue{id: "edge-" + stepID},
		)
	}

	// The closing edge always leaves the last visible step.
	last := "boundary-start"
	if len(steps) > 0 {
		last = "step-" + strconv.Itoa(min(len(steps), MaxSteps))
	}
	result = append(result, slotValue{id: "edge-end", source: last})

	for i := 0; i < MaxConsumers; i++ {
		n := strconv.Itoa(i + 1)

		label := ""
		if i < len(s.Consumers) {
			label = s.Consumers[i].Label()
		}
		if i == MaxConsumers-1 && len(s.Consumers) > MaxConsumers {
			label += "\n+" + strconv.Itoa(len(s.Consumers)-MaxConsumers)
		}

		hidden := strings.TrimSpace(label) == ""
		result = append(result,
			slotValue{id: "consumer-" + n, value: &label, hidden: hidden},
			slotValue{id: "edge-consumer-" + n, hidden: hidden},
		)
	}

	return result
}

var (
	attrValue  = regexp.MustCompile(`\svalue="[^"]*"`)
	attrStyle  = regexp.MustCompile(`\sstyle="([^"]*)"`)
	attrSource = regexp.MustCompile(`\ssource="[^"]*"`)
	cellTags   = make(map[string]*regexp.Regexp)
)

func cellTag(id string) *regexp.Regexp {
	if re, ok := cellTags[id]; ok {
		return re
	}

	return regexp.MustCompile(`<mxCell\b(?:[^>"]|"[^"]*")*?\sid="` + regexp.QuoteMeta(id) + `"(?:[^>"]|"[^"]*")*>`)
}

func init() {
	for _, s := range slots(&process.State{}) {
		cellTags[s.id] = cellTag(s.id)
	}
}

func applySlot(source string, slot slotValue) string {
	loc := cellTag(slot.id).FindStringIndex(source)
	if loc == nil {
		return source
	}

	tag := source[loc[0]:loc[1]]

	if slot.value != nil {
		tag = setAttr(tag, attrValue, "value", escapeValue(*slot.value))
	}
	if slot.source != "" {
		tag = setAttr(tag, attrSource, "source", slot.source)
	}
	tag = setHidden(tag, slot.hidden)

	return source[:loc[0]] + tag + source[loc[1]:]
}

func setAttr(tag string, re *regexp.Regexp, name, value string) string {
	attr := " " + name + `="` + value + `"`

	if re.MatchString(tag) {
		return re.ReplaceAllLiteralString(tag, attr)
	}

	return strings.Replace(tag, "<mxCell", "<mxCell"+attr, 1)
}

// setHidden adds or removes the hide directive at the end of the style attribute.
func setHidden(tag string, hidden bool) string {
	m := attrStyle.FindStringSubmatch(tag)
	if m == nil {
		if !hidden {
			return tag
		}
		return setAttr(tag, attrStyle, "style", HideDirective)
	}

	style := strings.ReplaceAll(m[1], HideDirective, "")
	if hidden {
		if style != "" && !strings.HasSuffix(style, ";") {
			style += ";"
		}
		style += HideDirective
	}

	return setAttr(tag, attrStyle, "style", style)
}

var valueEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"\r\n", lineBreak,
	"\n", lineBreak,
	"\r", lineBreak,
)

// escapeValue escapes text for a cell value attribute. Newlines become an escaped <br>, which
// draw.io renders as a line break in html labels.
func escapeValue(value string) string {
	return valueEscaper.Replace(strings.TrimSpace(value))
}

func checkWellFormed(source string) error {
	if strings.TrimSpace(source) == "" {
		return errors.New("empty source")
	}

	decoder := xml.NewDecoder(strings.NewReader(source))

	root := false
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			if !root {
				return errors.New("no root element")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			root = true
		}
	}
}
