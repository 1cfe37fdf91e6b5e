package diagram

import (
	"strconv"
	"strings"
	"testing"

	"procscribe/app/domain/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWithSteps(n int) *process.State {
	s := &process.State{
		Organization: process.Organization{Name: `ООО "Рога & Копыта"`},
		Process:      process.Info{Name: "Закупка"},
		Owner:        process.Owner{FullName: "Иван Иванов", Position: "директор"},
		Boundaries:   process.Boundaries{Start: "заявка", End: "склад"},
		Consumers:    []process.Consumer{{Kind: process.ConsumerGroup, Name: "Цех"}},
	}

	s.Graph.Nodes = append(s.Graph.Nodes, process.Node{ID: "start", Type: process.NodeStart})
	for i := 1; i <= n; i++ {
		s.Graph.Nodes = append(s.Graph.Nodes, process.Node{
			ID:      "step-" + strconv.Itoa(i),
			Label:   "Шаг " + strconv.Itoa(i),
			Type:    process.NodeProcess,
			Details: "строка 1\nстрока 2",
		})
	}
	s.Graph.Nodes = append(s.Graph.Nodes, process.Node{ID: "end", Type: process.NodeEnd})

	return s
}

func cell(t *testing.T, source, id string) string {
	t.Helper()
	tag := cellTag(id).FindString(source)
	require.NotEmpty(t, tag, id)
	return tag
}

func style(t *testing.T, tag string) string {
	t.Helper()
	m := attrStyle.FindStringSubmatch(tag)
	require.NotNil(t, m, tag)
	return m[1]
}

func TestRenderValues(t *testing.T) {
	out := Render(Template, stateWithSteps(2))

	require.NoError(t, checkWellFormed(out))

	assert.Contains(t, cell(t, out, "org-name"), `value="ООО &quot;Рога &amp; Копыта&quot;"`)
	assert.Contains(t, cell(t, out, "owner-position"), `value="директор"`)
	assert.Contains(t, cell(t, out, "step-1"), `value="Шаг 1"`)
	assert.Contains(t, cell(t, out, "step-2-details"), `value="строка 1&lt;br&gt;строка 2"`)
	assert.Contains(t, cell(t, out, "consumer-1"), `value="Цех"`)
}

func TestRenderHidesUnusedSlots(t *testing.T) {
	out := Render(Template, stateWithSteps(2))

	for _, id := range []string{"step-1", "step-2", "step-2-details", "edge-step-2", "consumer-1", "edge-consumer-1"} {
		assert.NotContains(t, cell(t, out, id), HideDirective, id)
	}
	for _, id := range []string{"step-3", "step-4", "step-3-details", "edge-step-3", "edge-step-4", "consumer-2", "edge-consumer-3"} {
		assert.Contains(t, cell(t, out, id), HideDirective+`"`, id)
	}

	assert.Contains(t, cell(t, out, "edge-end"), `source="step-2"`)
}

func TestRenderUnhidesSlots(t *testing.T) {
	first := Render(Template, stateWithSteps(1))
	second := Render(first, stateWithSteps(4))

	for i := 1; i <= 4; i++ {
		id := "step-" + strconv.Itoa(i)
		assert.Equal(t, style(t, cell(t, Template, id)), style(t, cell(t, second, id)), id)
	}

	assert.Contains(t, cell(t, second, "edge-end"), `source="step-4"`)
}

func TestRenderIdempotent(t *testing.T) {
	state := stateWithSteps(3)

	once := Render(Template, state)
	twice := Render(once, state)
	assert.Equal(t, once, twice)

	changed := *state
	changed.Goal = "быстрее"
	third := Render(twice, &changed)

	assert.NotEqual(t, twice, third)
	assert.Equal(t, strings.Replace(twice, cell(t, twice, "goal"), cell(t, third, "goal"), 1), third)
}

func TestRenderTooManySteps(t *testing.T) {
	out := Render(Template, stateWithSteps(6))

	assert.Contains(t, cell(t, out, "step-4-details"), "Далее: Шаг 5, Шаг 6")
	assert.Contains(t, cell(t, out, "edge-end"), `source="step-4"`)
}

func TestRenderNoSteps(t *testing.T) {
	out := Render(Template, &process.State{})

	assert.Contains(t, cell(t, out, "edge-end"), `source="boundary-start"`)
	assert.Contains(t, cell(t, out, "step-1"), HideDirective)
}

func TestRenderMalformed(t *testing.T) {
	for _, source := range []string{"", "<mxfile><diagram>", "<mxfile><mxCell id=\"goal\" value=\"a & b\"/></mxfile>", "не xml"} {
		assert.Equal(t, source, Render(source, stateWithSteps(1)), source)
	}
}

func TestRenderMissingCells(t *testing.T) {
	source := `<mxfile><mxCell id="goal" value="старое" style="text;"/></mxfile>`
	state := &process.State{Goal: "новое"}

	assert.Equal(t, `<mxfile><mxCell id="goal" value="новое" style="text;"/></mxfile>`, Render(source, state))
}

func TestRenderState(t *testing.T) {
	r := NewRenderer(Template)
	state := stateWithSteps(1)

	assert.Equal(t, Render(Template, state), r.RenderState(state))

	state.RawDiagramSource = `<mxfile><mxCell id="process-name" value=""/></mxfile>`
	assert.Equal(t, `<mxfile><mxCell id="process-name" value="Закупка"/></mxfile>`, r.RenderState(state))
}
