package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/diagram"
	"procscribe/app/service/document"
	"procscribe/app/service/intent"

	"github.com/mark3labs/mcp-go/mcp"
)

var (
	routeTurnTool = mcp.NewTool("route_turn",
		mcp.WithDescription("Decide whether the latest user message should be answered in chat or should update the document"),
		mcp.WithString("messages", mcp.Required(), mcp.Description(`JSON array of messages: [{"role":"user","text":"..."}]`)),
		mcp.WithBoolean("document_exists", mcp.Description("Whether a document has already been produced")),
	)

	extractFactsTool = mcp.NewTool("extract_facts",
		mcp.WithDescription("Extract process and meeting facts from the conversation as ordered state patches"),
		mcp.WithString("messages", mcp.Required(), mcp.Description("JSON array of messages")),
		mcp.WithString("state", mcp.Description("Current process state as JSON")),
	)

	mergeStateTool = mcp.NewTool("merge_state",
		mcp.WithDescription("Merge patches into a process state without erasing known facts"),
		mcp.WithString("state", mcp.Description("Current process state as JSON")),
		mcp.WithString("patches", mcp.Required(), mcp.Description("JSON array of patches, applied in order")),
	)

	patchDocumentTool = mcp.NewTool("patch_document",
		mcp.WithDescription("Replace, append to or delete Markdown sections by heading"),
		mcp.WithString("document", mcp.Required(), mcp.Description("Markdown document")),
		mcp.WithString("patches", mcp.Required(), mcp.Description(`JSON array: [{"heading":"...","mode":"replace|append|delete","content":"..."}]`)),
	)

	renderDiagramTool = mcp.NewTool("render_diagram",
		mcp.WithDescription("Fill a draw.io diagram with the process state"),
		mcp.WithString("state", mcp.Required(), mcp.Description("Process state as JSON")),
		mcp.WithString("source", mcp.Description("draw.io XML to fill, the built-in template is used when empty")),
	)
)

func (s *Server) routeTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	messages, err := messagesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	decision := s.router.Route(ctx, intent.Turn{
		Messages:       messages,
		DocumentExists: req.GetBool("document_exists", false),
	})

	return jsonResult(decision)
}

func (s *Server) extractFacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	messages, err := messagesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state, err := stateArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	patches := s.extractor.Extract(ctx, state, messages)
	if patches == nil {
		patches = []process.Patch{}
	}

	return jsonResult(patches)
}

func (s *Server) mergeState(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := stateArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var patches []process.Patch
	if err = jsonArg(req, "patches", &patches); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(process.Merge(state, patches...))
}

func (s *Server) patchDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var patches []document.Patch
	if err = jsonArg(req, "patches", &patches); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	for i, p := range patches {
		if err = s.validate.Struct(p); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid patch %d: %v", i, err)), nil
		}
	}

	return mcp.NewToolResultText(document.ApplyPatches(doc, patches)), nil
}

func (s *Server) renderDiagram(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := &process.State{}
	if err := jsonArg(req, "state", state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	source := req.GetString("source", "")
	if strings.TrimSpace(source) == "" {
		return mcp.NewToolResultText(s.renderer.RenderState(state)), nil
	}

	return mcp.NewToolResultText(diagram.Render(source, state)), nil
}

func messagesArg(req mcp.CallToolRequest) ([]chat.Message, error) {
	var wire []chat.WireMessage
	if err := jsonArg(req, "messages", &wire); err != nil {
		return nil, err
	}

	return chat.FromWire(wire), nil
}

// stateArg returns an empty state when the argument is absent.
func stateArg(req mcp.CallToolRequest) (*process.State, error) {
	state := &process.State{}
	if req.GetString("state", "") == "" {
		return state, nil
	}

	if err := jsonArg(req, "state", state); err != nil {
		return nil, err
	}

	return state, nil
}

func jsonArg(req mcp.CallToolRequest, name string, dst any) error {
	raw, err := req.RequireString(name)
	if err != nil {
		return err
	}

	if err = json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("argument %q is not valid JSON: %w", name, err)
	}

	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}

	return mcp.NewToolResultText(string(data)), nil
}
