package mcpserver

import (
	"context"
	"log/slog"
	"os"

	"procscribe/app/service/diagram"
	"procscribe/app/service/extract"
	"procscribe/app/service/intent"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const version = "1.0.0"

// Server exposes the stateless pipeline steps as MCP tools over stdio.
type Server struct {
	mcp       *server.MCPServer
	router    *intent.Router
	extractor *extract.Service
	renderer  *diagram.Renderer
	validate  *validator.Validate
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(
		do.MustInvoke[*intent.Router](di),
		do.MustInvoke[*extract.Service](di),
		do.MustInvoke[*diagram.Renderer](di),
	), nil
}

func NewServer(router *intent.Router, extractor *extract.Service, renderer *diagram.Renderer) *Server {
	s := &Server{
		router:    router,
		extractor: extractor,
		renderer:  renderer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	s.mcp = server.NewMCPServer(
		"procscribe",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(routeTurnTool, s.routeTurn)
	s.mcp.AddTool(extractFactsTool, s.extractFacts)
	s.mcp.AddTool(mergeStateTool, s.mergeState)
	s.mcp.AddTool(patchDocumentTool, s.patchDocument)
	s.mcp.AddTool(renderDiagramTool, s.renderDiagram)

	return s
}

func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Run serves MCP on stdin/stdout until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))

	slog.Info("MCP stdio server started")

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return oops.In("mcp").Wrapf(err, "failed to serve stdio")
	}

	return nil
}
