package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"procscribe/app/domain/process"
	"procscribe/app/service/diagram"
	"procscribe/app/service/extract"
	"procscribe/app/service/intent"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer() *Server {
	return NewServer(
		intent.NewRouter(intent.HeuristicClassifier{}),
		extract.NewService(nil),
		diagram.NewRenderer(diagram.Template),
	)
}

func callTool(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()

	var req mcp.CallToolRequest
	req.Params.Arguments = args

	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	return text.Text, res.IsError
}

func TestRouteTurn(t *testing.T) {
	s := newTestServer()

	out, isErr := callTool(t, s.routeTurn, map[string]any{
		"messages": `[{"role":"user","text":"Меня зовут Иван Иванов"},` +
			`{"role":"assistant","text":"Верно ли, что добавить пункт 3?"},` +
			`{"role":"user","text":"да"}]`,
		"document_exists": true,
	})
	require.False(t, isErr, out)

	var decision intent.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &decision))
	assert.Equal(t, intent.RouteDocument, decision.Route)
}

func TestExtractThenMerge(t *testing.T) {
	s := newTestServer()

	out, isErr := callTool(t, s.extractFacts, map[string]any{
		"messages": `[{"role":"user","content":"Меня зовут Иван Иванов, я директор ООО Ромашка"}]`,
	})
	require.False(t, isErr, out)

	out, isErr = callTool(t, s.mergeState, map[string]any{
		"state":   `{"goal":"сократить сроки"}`,
		"patches": out,
	})
	require.False(t, isErr, out)

	var state process.State
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, "Иван Иванов", state.Owner.FullName)
	assert.Equal(t, "сократить сроки", state.Goal)
}

func TestPatchDocument(t *testing.T) {
	s := newTestServer()

	out, isErr := callTool(t, s.patchDocument, map[string]any{
		"document": "## A\nbody1\n### A1\nsub\n## B\nbody2",
		"patches":  `[{"heading":"A","mode":"replace","content":"new"}]`,
	})
	require.False(t, isErr, out)
	assert.Equal(t, "## A\nnew\n## B\nbody2", out)

	_, isErr = callTool(t, s.patchDocument, map[string]any{
		"document": "## A",
		"patches":  `[{"heading":"","mode":"replace"}]`,
	})
	assert.True(t, isErr)
}

func TestRenderDiagram(t *testing.T) {
	s := newTestServer()

	out, isErr := callTool(t, s.renderDiagram, map[string]any{
		"state": `{"goal":"сократить сроки"}`,
	})
	require.False(t, isErr)
	assert.Contains(t, out, "сократить сроки")

	_, isErr = callTool(t, s.renderDiagram, map[string]any{})
	assert.True(t, isErr)
}

func TestBadArguments(t *testing.T) {
	s := newTestServer()

	_, isErr := callTool(t, s.mergeState, map[string]any{"patches": "not json"})
	assert.True(t, isErr)

	_, isErr = callTool(t, s.routeTurn, map[string]any{})
	assert.True(t, isErr)
}
