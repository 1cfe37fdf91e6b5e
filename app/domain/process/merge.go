package process

import (
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"
)

// Merge applies patches in order on top of prev and returns a new state. prev is not modified.
// Later patches win on conflicting scalars, so heuristic patches go first and model output last.
func Merge(prev *State, patches ...Patch) *State {
	return MergeAt(time.Now(), prev, patches...)
}

func MergeAt(now time.Time, prev *State, patches ...Patch) *State {
	next := Clone(prev)

	for _, p := range patches {
		mergeOne(next, p)
	}

	next.UpdatedAt = now.UTC()

	return next
}

func mergeOne(s *State, p Patch) {
	setScalar(&s.Organization.Name, p.Organization.Name)
	setScalar(&s.Organization.Activity, p.Organization.Activity)
	setScalar(&s.Process.Name, p.Process.Name)
	setScalar(&s.Process.Description, p.Process.Description)
	setScalar(&s.Owner.FullName, p.Owner.FullName)
	setScalar(&s.Owner.Position, p.Owner.Position)
	setScalar(&s.Goal, p.Goal)
	setScalar(&s.Product, p.Product)
	setScalar(&s.ProductDescription, p.ProductDescription)
	setScalar(&s.Boundaries.Start, p.Boundaries.Start)
	setScalar(&s.Boundaries.End, p.Boundaries.End)
	setScalar(&s.Meeting.Date, p.Meeting.Date)

	if p.ReplaceConsumers {
		s.Consumers = MergeConsumers(nil, p.Consumers)
	} else {
		s.Consumers = MergeConsumers(s.Consumers, p.Consumers)
	}

	s.Participants = MergeParticipants(s.Participants, p.Participants)

	s.Meeting.Agenda = mergeStrings(s.Meeting.Agenda, p.Meeting.Agenda)
	s.Meeting.CustomerSide = mergeStrings(s.Meeting.CustomerSide, p.Meeting.CustomerSide)
	s.Meeting.ContractorSide = mergeStrings(s.Meeting.ContractorSide, p.Meeting.ContractorSide)

	if p.Graph != nil && len(p.Graph.Nodes) > 0 {
		s.Graph = cloneGraph(*p.Graph)
	}

	// Stored verbatim: the diagram source is opaque and whitespace may be significant.
	if strings.TrimSpace(p.RawDiagramSource) != "" {
		s.RawDiagramSource = p.RawDiagramSource
	}
}

func setScalar(dst *string, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	*dst = value
}

// MergeConsumers returns the first-seen-order union of both lists deduplicated by ConsumerKey.
func MergeConsumers(prev, add []Consumer) []Consumer {
	if len(add) == 0 {
		return prev
	}

	result := make([]Consumer, 0, len(prev)+len(add))
	seen := make(map[string]struct{}, len(prev)+len(add))

	for _, c := range append(append([]Consumer{}, prev...), add...) {
		c = Consumer{
			Kind:     ConsumerKind(strings.TrimSpace(string(c.Kind))),
			Name:     strings.TrimSpace(c.Name),
			FullName: strings.TrimSpace(c.FullName),
			Position: strings.TrimSpace(c.Position),
		}
		if c.Name == "" && c.FullName == "" && c.Position == "" {
			continue
		}
		if c.Kind == "" {
			c.Kind = ConsumerPerson
		}

		key := ConsumerKey(c)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		result = append(result, c)
	}

	return result
}

// ConsumerKey is the lowercase (kind, fullName, name, position) tuple.
func ConsumerKey(c Consumer) string {
	return strings.Join([]string{
		keyPart(string(c.Kind)),
		keyPart(c.FullName),
		keyPart(c.Name),
		keyPart(c.Position),
	}, "\x1f")
}

func MergeParticipants(prev, add []Participant) []Participant {
	if len(add) == 0 {
		return prev
	}

	result := make([]Participant, 0, len(prev)+len(add))
	seen := make(map[string]struct{}, len(prev)+len(add))

	for _, p := range append(append([]Participant{}, prev...), add...) {
		p = Participant{
			FullName: strings.TrimSpace(p.FullName),
			Position: strings.TrimSpace(p.Position),
			Role:     strings.TrimSpace(p.Role),
		}
		if p.FullName == "" {
			continue
		}

		key := keyPart(p.FullName) + "\x1f" + keyPart(p.Position) + "\x1f" + keyPart(p.Role)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		result = append(result, p)
	}

	return result
}

func mergeStrings(prev, add []string) []string {
	if len(add) == 0 {
		return prev
	}

	values := pie.Map(append(append([]string{}, prev...), add...), strings.TrimSpace)
	values = pie.Filter(values, func(s string) bool { return s != "" })

	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))

	for _, v := range values {
		key := keyPart(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, v)
	}

	return result
}

func keyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Clone returns a deep copy; a nil state clones into an empty one.
func Clone(s *State) *State {
	if s == nil {
		return &State{}
	}

	c := *s
	c.Consumers = cloneSlice(s.Consumers)
	c.Participants = cloneSlice(s.Participants)
	c.Graph = cloneGraph(s.Graph)
	c.Meeting.Agenda = cloneSlice(s.Meeting.Agenda)
	c.Meeting.CustomerSide = cloneSlice(s.Meeting.CustomerSide)
	c.Meeting.ContractorSide = cloneSlice(s.Meeting.ContractorSide)

	return &c
}

func cloneGraph(g Graph) Graph {
	return Graph{
		Layout: g.Layout,
		Nodes:  cloneSlice(g.Nodes),
		Edges:  cloneSlice(g.Edges),
	}
}

// cloneSlice keeps nil and empty apart so the JSON form survives a copy.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}

	return append(make([]T, 0, len(s)), s...)
}
