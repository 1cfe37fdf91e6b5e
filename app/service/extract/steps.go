package extract

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"procscribe/app/domain/process"

	"github.com/elliotchance/pie/v2"
)

// Step is one "Шаг N." block found in a message.
type Step struct {
	Number       int
	Label        string
	Description  string
	Participants []string
	Role         string
	Product      string
}

var (
	stepPattern = regexp.MustCompile(`^[ \t]*(?:#{1,6}[ \t]*)?(?:[-*+•][ \t]+)?(?:\*\*|__)?[ \t]*(?i:шаг|этап)[ \t]*(\d{1,2})[ \t]*(?:[.:)]|[—–-])?[ \t]*(.*)$`)

	stepDescription     = regexp.MustCompile(`(?i)` + linePrefix + `(?:описание|что делается|действия)` + separator + `[ \t]*(.*)$`)
	stepParticipantLine = regexp.MustCompile(`(?i)` + linePrefix + `(?:участники|исполнители|исполнитель|участник|кто выполняет)` + separator + `[ \t]*(.*)$`)
	stepRole            = regexp.MustCompile(`(?i)` + linePrefix + `(?:роль|роли)` + separator + `[ \t]*(.*)$`)
	stepProduct         = regexp.MustCompile(`(?i)` + linePrefix + `(?:продукт|результат|выход)` + separator + `[ \t]*(.*)$`)
)

// findSteps returns the step blocks and the line indexes they cover. A block runs from its
// marker to the next marker, the next markdown heading, or the end of the text.
func findSteps(lines []string) ([]Step, map[int]bool) {
	var steps []Step
	covered := make(map[int]bool)

	seen := make(map[int]bool)
	current := -1
	swallow := false

	for i, line := range lines {
		if m := stepPattern.FindStringSubmatch(line); m != nil {
			number, _ := strconv.Atoi(m[1])
			covered[i] = true

			// A repeated number keeps the first block; the repeat is dropped whole.
			if seen[number] {
				current, swallow = -1, true
				continue
			}
			seen[number] = true

			label := cleanValue(m[2])
			if label == "" {
				label = "Шаг " + m[1]
			}

			steps = append(steps, Step{Number: number, Label: label})
			current, swallow = len(steps)-1, false
			continue
		}

		if current < 0 && !swallow {
			continue
		}
		if headingPattern.MatchString(line) {
			current, swallow = -1, false
			continue
		}

		covered[i] = true
		if current >= 0 {
			readStepLine(&steps[current], line)
		}
	}

	return steps, covered
}

func readStepLine(step *Step, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	if m := stepParticipantLine.FindStringSubmatch(line); m != nil {
		step.Participants = append(step.Participants, splitList(cleanValue(m[1]), false)...)
		return
	}
	if m := stepRole.FindStringSubmatch(line); m != nil {
		step.Role = cleanValue(m[1])
		return
	}
	if m := stepProduct.FindStringSubmatch(line); m != nil {
		step.Product = cleanValue(m[1])
		return
	}

	text := line
	if m := stepDescription.FindStringSubmatch(line); m != nil {
		text = m[1]
	} else if m := listItemPattern.FindStringSubmatch(line); m != nil {
		text = m[1]
	}

	text = cleanValue(text)
	if text == "" {
		return
	}

	if step.Description == "" {
		step.Description = text
	} else {
		step.Description += " " + text
	}
}

// mergeSteps returns prev with later blocks replacing earlier ones of the same number, ordered
// by step number.
func mergeSteps(prev, later []Step) []Step {
	if len(later) == 0 {
		return prev
	}

	result := slices.Clone(prev)
	for _, s := range later {
		idx := slices.IndexFunc(result, func(p Step) bool { return p.Number == s.Number })
		if idx >= 0 {
			result[idx] = s
		} else {
			result = append(result, s)
		}
	}

	slices.SortStableFunc(result, func(a, b Step) int { return a.Number - b.Number })

	return result
}

// Details joins the secondary step facts into the text shown under a diagram node.
func (s Step) Details() string {
	var parts []string

	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if len(s.Participants) > 0 {
		parts = append(parts, "Участники: "+strings.Join(s.Participants, ", "))
	}
	if s.Role != "" {
		parts = append(parts, "Роль: "+s.Role)
	}
	if s.Product != "" {
		parts = append(parts, "Продукт: "+s.Product)
	}

	return strings.Join(parts, "\n")
}

func stepID(s Step) string {
	return "step-" + strconv.Itoa(s.Number)
}

// buildGraph lays the steps out as a linear chain between a start and an end node.
func buildGraph(steps []Step) process.Graph {
	graph := process.Graph{Layout: "LR"}

	graph.Nodes = append(graph.Nodes, process.Node{ID: "start", Label: "Начало", Type: process.NodeStart})
	for _, s := range steps {
		graph.Nodes = append(graph.Nodes, process.Node{
			ID:      stepID(s),
			Label:   s.Label,
			Type:    process.NodeProcess,
			Details: s.Details(),
		})
	}
	graph.Nodes = append(graph.Nodes, process.Node{ID: "end", Label: "Конец", Type: process.NodeEnd})

	for i := 1; i < len(graph.Nodes); i++ {
		graph.Edges = append(graph.Edges, process.Edge{
			From: graph.Nodes[i-1].ID,
			To:   graph.Nodes[i].ID,
		})
	}

	return graph
}

func stepParticipants(steps []Step) []process.Participant {
	var result []process.Participant

	for _, s := range steps {
		result = append(result, pie.Map(s.Participants, func(name string) process.Participant {
			p := process.Participant{Role: s.Role}
			p.FullName, p.Position = splitNamePosition(name)
			return p
		})...)
	}

	return result
}
