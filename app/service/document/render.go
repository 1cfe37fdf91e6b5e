package document

import (
	"fmt"
	"regexp"
	"strings"

	"procscribe/app/domain/process"

	"github.com/elliotchance/pie/v2"
)

const (
	HeadingOrganization = "Организация"
	HeadingProcess      = "Процесс"
	HeadingOwner        = "Владелец процесса"
	HeadingGoal         = "Цель процесса"
	HeadingProduct      = "Продукт процесса"
	HeadingBoundaries   = "Границы процесса"
	HeadingConsumers    = "Потребители"
	HeadingParticipants = "Участники"
	HeadingSteps        = "Шаги процесса"
	HeadingDiagram      = "Схема процесса"

	unknown = "_Не указано_"
)

type section struct {
	heading string
	content string
}

// processSections lists the passport sections in document order. Empty content means the
// facts behind the section are not known yet.
func processSections(s *process.State) []section {
	return []section{
		{HeadingOrganization, bulletLines(
			"Наименование", s.Organization.Name,
			"Вид деятельности", s.Organization.Activity,
		)},
		{HeadingProcess, bulletLines(
			"Наименование", s.Process.Name,
			"Описание", s.Process.Description,
		)},
		{HeadingOwner, joinNonEmpty(", ", s.Owner.FullName, s.Owner.Position)},
		{HeadingGoal, s.Goal},
		{HeadingProduct, joinNonEmpty("\n\n", s.Product, s.ProductDescription)},
		{HeadingBoundaries, bulletLines(
			"Начало", s.Boundaries.Start,
			"Окончание", s.Boundaries.End,
		)},
		{HeadingConsumers, bulletList(pie.Map(s.Consumers, process.Consumer.Label))},
		{HeadingParticipants, bulletList(pie.Map(s.Participants, participantLine))},
		{HeadingSteps, stepsList(s.Graph)},
		{HeadingDiagram, mermaidBlock(s.Graph)},
	}
}

// RenderProcess renders the whole process passport. Unknown sections are kept with a placeholder
// so the user sees what is still missing.
func RenderProcess(s *process.State) string {
	if s == nil {
		s = &process.State{}
	}

	title := "# Паспорт процесса"
	if s.Process.Name != "" {
		title += " «" + s.Process.Name + "»"
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")

	for _, sec := range processSections(s) {
		content := sec.content
		if content == "" {
			content = unknown
		}

		sb.WriteString("\n## ")
		sb.WriteString(sec.heading)
		sb.WriteString("\n")
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	return sb.String()
}

// StatePatches turns the known facts into replace patches, so an existing passport picks up new
// facts while sections the user added by hand survive.
func StatePatches(s *process.State) []Patch {
	if s == nil {
		return nil
	}

	var result []Patch
	for _, sec := range processSections(s) {
		if sec.content == "" {
			continue
		}
		result = append(result, Patch{
			Heading: "## " + sec.heading,
			Mode:    ModeReplace,
			Content: sec.content,
		})
	}

	return result
}

func bulletLines(pairs ...string) string {
	var lines []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if value := strings.TrimSpace(pairs[i+1]); value != "" {
			lines = append(lines, fmt.Sprintf("- **%s:** %s", pairs[i], value))
		}
	}

	return strings.Join(lines, "\n")
}

func bulletList(items []string) string {
	items = pie.Filter(items, func(s string) bool { return strings.TrimSpace(s) != "" })
	if len(items) == 0 {
		return ""
	}

	return "- " + strings.Join(items, "\n- ")
}

func joinNonEmpty(sep string, values ...string) string {
	return strings.Join(pie.Filter(values, func(s string) bool { return strings.TrimSpace(s) != "" }), sep)
}

func participantLine(p process.Participant) string {
	line := joinNonEmpty(", ", p.FullName, p.Position)
	if p.Role != "" {
		line += " (" + p.Role + ")"
	}

	return line
}

func stepsList(g process.Graph) string {
	var sb strings.Builder

	for i, n := range g.StepNodes() {
		fmt.Fprintf(&sb, "%d. **%s**\n", i+1, n.Label)
		for _, line := range strings.Split(n.Details, "\n") {
			if strings.TrimSpace(line) != "" {
				sb.WriteString("   ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func mermaidBlock(g process.Graph) string {
	if len(g.Nodes) == 0 {
		return ""
	}

	return "```mermaid\n" + Mermaid(g) + "```"
}

var (
	mermaidID = regexp.MustCompile(`[^A-Za-z0-9_]`)
	// Mermaid keywords cannot be used as node ids.
	mermaidReserved = map[string]bool{"end": true, "graph": true, "subgraph": true, "flowchart": true, "style": true, "class": true, "click": true}
)

// Mermaid renders the graph as a Mermaid flowchart.
func Mermaid(g process.Graph) string {
	direction := strings.ToUpper(g.Layout)
	switch direction {
	case "LR", "RL", "TB", "BT":
	default:
		direction = "TB"
	}

	var sb strings.Builder
	sb.WriteString("flowchart ")
	sb.WriteString(direction)
	sb.WriteString("\n")

	ids := mermaidIDs(g.Nodes)
	nodeID := func(id string) string {
		if v, ok := ids[id]; ok {
			return v
		}
		return mermaidNodeID(id)
	}

	for _, n := range g.Nodes {
		open, closing := nodeShape(n.Type)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", nodeID(n.ID), open, mermaidText(n.Label), closing)
	}

	for _, e := range g.Edges {
		if e.Label != "" {
			fmt.Fprintf(&sb, "    %s -->|\"%s\"| %s\n", nodeID(e.From), mermaidText(e.Label), nodeID(e.To))
		} else {
			fmt.Fprintf(&sb, "    %s --> %s\n", nodeID(e.From), nodeID(e.To))
		}
	}

	return sb.String()
}

func nodeShape(t process.NodeType) (string, string) {
	switch t {
	case process.NodeStart, process.NodeEnd:
		return "([", "])"
	case process.NodeDecision:
		return "{", "}"
	case process.NodeActor:
		return "(", ")"
	case process.NodeDoc:
		return "[/", "/]"
	case process.NodeNote:
		return ">", "]"
	default:
		return "[", "]"
	}
}

// mermaidIDs maps node ids to unique Mermaid identifiers. Sanitizing may fold
// distinct ids together, the later ones then get a numeric suffix.
func mermaidIDs(nodes []process.Node) map[string]string {
	ids := make(map[string]string, len(nodes))
	taken := make(map[string]bool, len(nodes))

	for _, n := range nodes {
		if _, ok := ids[n.ID]; ok {
			continue
		}

		base := mermaidNodeID(n.ID)
		id := base
		for i := 2; taken[id]; i++ {
			id = fmt.Sprintf("%s_%d", base, i)
		}

		taken[id] = true
		ids[n.ID] = id
	}

	return ids
}

func mermaidNodeID(id string) string {
	id = mermaidID.ReplaceAllString(id, "_")
	if id == "" {
		return "n"
	}
	if mermaidReserved[strings.ToLower(id)] {
		return id + "_"
	}

	return id
}

func mermaidText(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	return strings.ReplaceAll(s, "\n", "<br/>")
}
