// Package process holds the incrementally built fact base of a conversation and the rules for
// merging partial patches into it.
//
// Every scalar is optional: an empty string means "not known yet", never "known to be empty".
// A patch can only move a scalar from unknown to known or from one known value to another.
package process

import "time"

type ConsumerKind string

const (
	ConsumerPerson ConsumerKind = "person"
	ConsumerOrg    ConsumerKind = "org"
	ConsumerGroup  ConsumerKind = "group"
)

type NodeType string

const (
	NodeStart    NodeType = "start"
	NodeProcess  NodeType = "process"
	NodeDecision NodeType = "decision"
	NodeEnd      NodeType = "end"
	NodeActor    NodeType = "actor"
	NodeDoc      NodeType = "doc"
	NodeNote     NodeType = "note"
)

type State struct {
	Organization       Organization  `json:"organization"`
	Process            Info          `json:"process"`
	Owner              Owner         `json:"owner"`
	Goal               string        `json:"goal,omitempty"`
	Product            string        `json:"product,omitempty"`
	ProductDescription string        `json:"productDescription,omitempty"`
	Boundaries         Boundaries    `json:"boundaries"`
	Consumers          []Consumer    `json:"consumers"`
	Participants       []Participant `json:"participants"`
	Graph              Graph         `json:"graph"`
	Meeting            Meeting       `json:"meeting"`
	RawDiagramSource   string        `json:"rawDiagramSource,omitempty"`
	Version            int64         `json:"version"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

type Organization struct {
	Name     string `json:"name,omitempty"`
	Activity string `json:"activity,omitempty"`
}

type Info struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type Owner struct {
	FullName string `json:"fullName,omitempty"`
	Position string `json:"position,omitempty"`
}

type Boundaries struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Consumer struct {
	Kind     ConsumerKind `json:"kind"`
	Name     string       `json:"name,omitempty"`
	FullName string       `json:"fullName,omitempty"`
	Position string       `json:"position,omitempty"`
}

type Participant struct {
	FullName string `json:"fullName"`
	Position string `json:"position,omitempty"`
	Role     string `json:"role,omitempty"`
}

type Graph struct {
	Layout string `json:"layout,omitempty"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

type Node struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Type    NodeType `json:"type"`
	Details string   `json:"details,omitempty"`
}

type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Meeting carries the facts a meeting protocol cannot be produced without.
type Meeting struct {
	Date           string   `json:"date,omitempty"`
	Agenda         []string `json:"agenda"`
	CustomerSide   []string `json:"customerSide"`
	ContractorSide []string `json:"contractorSide"`
}

// Patch is a partial state. Empty strings and nil slices mean "no information".
type Patch struct {
	Organization       Organization  `json:"organization"`
	Process            Info          `json:"process"`
	Owner              Owner         `json:"owner"`
	Goal               string        `json:"goal,omitempty"`
	Product            string        `json:"product,omitempty"`
	ProductDescription string        `json:"productDescription,omitempty"`
	Boundaries         Boundaries    `json:"boundaries"`
	Consumers          []Consumer    `json:"consumers,omitempty"`
	ReplaceConsumers   bool          `json:"replaceConsumers,omitempty"`
	Participants       []Participant `json:"participants,omitempty"`
	Graph              *Graph        `json:"graph,omitempty"`
	Meeting            Meeting       `json:"meeting"`
	RawDiagramSource   string        `json:"rawDiagramSource,omitempty"`
}

// IsEmpty reports whether merging the patch can change anything besides UpdatedAt.
func (p Patch) IsEmpty() bool {
	return isBlank(p.Organization.Name) && isBlank(p.Organization.Activity) &&
		isBlank(p.Process.Name) && isBlank(p.Process.Description) &&
		isBlank(p.Owner.FullName) && isBlank(p.Owner.Position) &&
		isBlank(p.Goal) && isBlank(p.Product) && isBlank(p.ProductDescription) &&
		isBlank(p.Boundaries.Start) && isBlank(p.Boundaries.End) &&
		len(p.Consumers) == 0 && !p.ReplaceConsumers &&
		len(p.Participants) == 0 &&
		(p.Graph == nil || len(p.Graph.Nodes) == 0) &&
		isBlank(p.Meeting.Date) && len(p.Meeting.Agenda) == 0 &&
		len(p.Meeting.CustomerSide) == 0 && len(p.Meeting.ContractorSide) == 0 &&
		isBlank(p.RawDiagramSource)
}

// StepNodes returns the process-type nodes of the graph in order.
func (g Graph) StepNodes() []Node {
	var result []Node
	for _, n := range g.Nodes {
		if n.Type == NodeProcess || n.Type == NodeDecision {
			result = append(result, n)
		}
	}
	return result
}

// Label is the human readable form used by documents and diagram slots.
func (c Consumer) Label() string {
	name := c.FullName
	if name == "" {
		name = c.Name
	}

	if c.Position != "" && name != "" {
		return name + ", " + c.Position
	}
	if name == "" {
		return c.Position
	}

	return name
}
