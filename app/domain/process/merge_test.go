package process

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ignoreUpdatedAt = cmp.Options{
	cmpopts.IgnoreFields(State{}, "UpdatedAt"),
	cmpopts.EquateEmpty(),
}

func sampleState() *State {
	return &State{
		Organization: Organization{Name: "ООО Ромашка", Activity: "Оптовая торговля"},
		Process:      Info{Name: "Закупка"},
		Owner:        Owner{FullName: "Иван Иванов", Position: "директор"},
		Goal:         "x",
		Consumers: []Consumer{
			{Kind: ConsumerPerson, Name: "Иванов"},
			{Kind: ConsumerOrg, Name: "АО Лютик"},
		},
		Graph: Graph{
			Layout: "LR",
			Nodes:  []Node{{ID: "start", Label: "Начало", Type: NodeStart}},
		},
		RawDiagramSource: "<mxfile/>",
		Version:          3,
	}
}

func samplePatches() []Patch {
	return []Patch{
		{},
		{Goal: "  новая цель  "},
		{Owner: Owner{Position: "генеральный директор"}},
		{Consumers: []Consumer{{Kind: ConsumerPerson, Name: "Иванов"}, {Kind: ConsumerGroup, Name: "Отдел продаж"}}},
		{Graph: &Graph{Nodes: []Node{{ID: "a", Label: "A", Type: NodeProcess}}, Edges: []Edge{{From: "a", To: "b"}}}},
		{Meeting: Meeting{Date: "12.03.2025", Agenda: []string{"Бюджет", "бюджет "}}},
		{Participants: []Participant{{FullName: "Петров", Role: "исполнитель"}}},
		{RawDiagramSource: "<mxfile id=\"2\"/>"},
	}
}

func TestMergeIdempotent(t *testing.T) {
	for _, prev := range []*State{nil, {}, sampleState()} {
		for i, p := range samplePatches() {
			once := Merge(prev, p)
			twice := Merge(once, p)

			if diff := cmp.Diff(once, twice, ignoreUpdatedAt); diff != "" {
				t.Errorf("patch %d is not idempotent (-once +twice):\n%s", i, diff)
			}
		}
	}
}

func TestMergeNonErasure(t *testing.T) {
	prev := sampleState()

	tests := []struct {
		name  string
		patch Patch
	}{
		{"absent", Patch{}},
		{"blank", Patch{Goal: "   ", Owner: Owner{FullName: ""}, Organization: Organization{Name: "\t"}}},
		{"unrelated field", Patch{Product: "Договор поставки"}},
		{"empty graph", Patch{Graph: &Graph{Layout: "TB"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(prev, tt.patch)

			assert.Equal(t, "x", got.Goal)
			assert.Equal(t, "Иван Иванов", got.Owner.FullName)
			assert.Equal(t, "ООО Ромашка", got.Organization.Name)
			assert.Equal(t, prev.Graph, got.Graph)
			assert.Equal(t, "<mxfile/>", got.RawDiagramSource)
		})
	}
}

func TestMergeEmptyPatchKeepsState(t *testing.T) {
	prev := sampleState()
	got := Merge(prev, Patch{})

	if diff := cmp.Diff(prev, got, ignoreUpdatedAt); diff != "" {
		t.Errorf("unexpected change (-prev +got):\n%s", diff)
	}
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMergeKeepsEmptyLists(t *testing.T) {
	prev := &State{
		Consumers:    []Consumer{},
		Participants: []Participant{},
		Graph:        Graph{Nodes: []Node{}, Edges: []Edge{}},
		Meeting:      Meeting{Agenda: []string{}, CustomerSide: []string{}, ContractorSide: []string{}},
	}

	got := Merge(prev)
	assert.NotNil(t, got.Consumers)
	assert.NotNil(t, got.Graph.Nodes)
	assert.NotNil(t, got.Meeting.Agenda)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"consumers":[]`)
	assert.Contains(t, string(data), `"participants":[]`)
	assert.Contains(t, string(data), `"nodes":[]`)
	assert.Contains(t, string(data), `"agenda":[]`)

	assert.Nil(t, Clone(&State{}).Consumers)
}

func TestMergeDoesNotMutatePrev(t *testing.T) {
	prev := sampleState()
	_ = Merge(prev, Patch{Consumers: []Consumer{{Kind: ConsumerGroup, Name: "Склад"}}, Goal: "y"})

	assert.Equal(t, "x", prev.Goal)
	assert.Len(t, prev.Consumers, 2)
}

func TestMergeScalarsOverwrite(t *testing.T) {
	got := Merge(sampleState(), Patch{Goal: " y ", Owner: Owner{Position: "владелец"}})

	assert.Equal(t, "y", got.Goal)
	assert.Equal(t, "владелец", got.Owner.Position)
	assert.Equal(t, "Иван Иванов", got.Owner.FullName)
}

func TestMergeOrderModelWins(t *testing.T) {
	heuristic := Patch{Goal: "эвристика", Product: "Счёт"}
	model := Patch{Goal: "модель"}

	got := Merge(nil, heuristic, model)

	assert.Equal(t, "модель", got.Goal)
	assert.Equal(t, "Счёт", got.Product)
}

func TestMergeConsumerDedup(t *testing.T) {
	prev := &State{Consumers: []Consumer{{Kind: ConsumerPerson, Name: "Иванов"}}}

	got := Merge(prev, Patch{Consumers: []Consumer{{Kind: "person", Name: "Иванов"}}})
	require.Len(t, got.Consumers, 1)

	got = Merge(got, Patch{Consumers: []Consumer{
		{Kind: "PERSON", Name: " иванов "},
		{Kind: ConsumerPerson, Name: "Иванов", Position: "бухгалтер"},
		{Name: "Сидоров"},
		{Kind: ConsumerGroup},
	}})

	require.Len(t, got.Consumers, 3)
	assert.Equal(t, "Иванов", got.Consumers[0].Name)
	assert.Equal(t, "бухгалтер", got.Consumers[1].Position)
	assert.Equal(t, ConsumerPerson, got.Consumers[2].Kind)
}

func TestMergeReplaceConsumers(t *testing.T) {
	got := Merge(sampleState(), Patch{
		ReplaceConsumers: true,
		Consumers:        []Consumer{{Kind: ConsumerOrg, Name: "ПАО Василёк"}},
	})

	require.Len(t, got.Consumers, 1)
	assert.Equal(t, "ПАО Василёк", got.Consumers[0].Name)
}

func TestMergeGraphReplacedWhole(t *testing.T) {
	graph := &Graph{
		Layout: "TB",
		Nodes: []Node{
			{ID: "s", Label: "Старт", Type: NodeStart},
			{ID: "p", Label: "Шаг", Type: NodeProcess},
		},
		Edges: []Edge{{From: "s", To: "p"}},
	}

	got := Merge(sampleState(), Patch{Graph: graph})
	assert.Equal(t, *graph, got.Graph)

	graph.Nodes[0].Label = "mutated"
	assert.Equal(t, "Старт", got.Graph.Nodes[0].Label)
}

func TestMergeAtSetsTime(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	got := MergeAt(now, nil)

	assert.Equal(t, now.UTC(), got.UpdatedAt)
}

func TestPatchIsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.True(t, Patch{Goal: "  ", Graph: &Graph{}}.IsEmpty())
	assert.False(t, Patch{Meeting: Meeting{Agenda: []string{"a"}}}.IsEmpty())
}

func TestConsumerLabel(t *testing.T) {
	assert.Equal(t, "Иван Петров, бухгалтер", Consumer{FullName: "Иван Петров", Position: "бухгалтер"}.Label())
	assert.Equal(t, "Отдел продаж", Consumer{Kind: ConsumerGroup, Name: "Отдел продаж"}.Label())
	assert.Equal(t, "бухгалтер", Consumer{Position: "бухгалтер"}.Label())
}
