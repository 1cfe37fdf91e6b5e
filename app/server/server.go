package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"procscribe/app/config"
	"procscribe/app/service/conversation"
	"procscribe/app/service/diagram"
	"procscribe/app/service/extract"
	"procscribe/app/service/store"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const shutdownTimeout = 10 * time.Second

var _ do.Shutdownable = (*Server)(nil)

type Server struct {
	app          *fiber.App
	listen       string
	conversation *conversation.Service
	extractor    *extract.Service
	renderer     *diagram.Renderer
	store        *store.Service
	validate     *validator.Validate
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(
		cfg.HTTP,
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*extract.Service](di),
		do.MustInvoke[*diagram.Renderer](di),
		do.MustInvoke[*store.Service](di),
	), nil
}

func NewServer(
	cfg config.HTTP,
	conversationSvc *conversation.Service,
	extractSvc *extract.Service,
	renderer *diagram.Renderer,
	storeSvc *store.Service,
) *Server {
	s := &Server{
		listen:       cfg.Listen,
		conversation: conversationSvc,
		extractor:    extractSvc,
		renderer:     renderer,
		store:        storeSvc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "procscribe",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(accessLog)

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api/v1")
	api.Post("/turn", s.turn)
	api.Post("/extract", s.extract)
	api.Post("/merge", s.merge)
	api.Post("/patch", s.patch)
	api.Post("/diagram", s.diagram)

	conv := api.Group("/conversations")
	conv.Post("", s.createConversation)
	conv.Get("/:id", s.getConversation)
	conv.Put("/:id", s.putConversation)
	conv.Delete("/:id", s.deleteConversation)
	conv.Post("/:id/turn", s.conversationTurn)
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("Failed to shut down HTTP server", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "addr", s.listen)

	if err := s.app.Listen(s.listen); err != nil {
		return oops.In("server").With("addr", s.listen).Wrapf(err, "failed to listen")
	}

	return nil
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := ""

	var fiberErr *fiber.Error
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
	case errors.As(err, &validationErrs):
		status = fiber.StatusBadRequest
		code = "validation"
	case errors.Is(err, store.ErrStaleState):
		status = fiber.StatusConflict
		code = "stale_state"
	case errors.Is(err, store.ErrNotFound):
		status = fiber.StatusNotFound
		code = "not_found"
	case errors.Is(err, store.ErrInvalidID):
		status = fiber.StatusBadRequest
		code = "invalid_id"
	}

	if status >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(status).JSON(errorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func accessLog(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()

	slog.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"error", err,
		"duration", time.Since(started),
	)

	return err
}
