package server

import (
	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"
	"procscribe/app/service/conversation"
	"procscribe/app/service/diagram"
	"procscribe/app/service/document"
	"procscribe/app/service/store"

	"github.com/gofiber/fiber/v2"
)

type turnRequest struct {
	Kind     store.Kind         `json:"kind" validate:"omitempty,oneof=protocol process"`
	Messages []chat.WireMessage `json:"messages" validate:"required,min=1"`
	Document string             `json:"document"`
	State    *process.State     `json:"state"`
}

type extractRequest struct {
	Messages []chat.WireMessage `json:"messages" validate:"required,min=1"`
	State    *process.State     `json:"state"`
}

type extractResponse struct {
	Patches []process.Patch `json:"patches"`
}

type mergeRequest struct {
	State   *process.State  `json:"state"`
	Patches []process.Patch `json:"patches"`
}

type stateResponse struct {
	State *process.State `json:"state"`
}

type patchRequest struct {
	Document string           `json:"document"`
	Patches  []document.Patch `json:"patches" validate:"required,dive"`
}

type documentResponse struct {
	Document string `json:"document"`
}

type diagramRequest struct {
	Source string         `json:"source"`
	State  *process.State `json:"state" validate:"required"`
}

type diagramResponse struct {
	Diagram string `json:"diagram"`
}

type createConversationRequest struct {
	Kind store.Kind `json:"kind" validate:"omitempty,oneof=protocol process"`
}

type updateConversationRequest struct {
	Messages []chat.WireMessage `json:"messages"`
	Document *string            `json:"document"`
	Diagram  *string            `json:"diagram"`
	State    *process.State     `json:"state"`
	Version  int64              `json:"version" validate:"gte=1"`
}

type conversationTurnRequest struct {
	Message chat.WireMessage `json:"message"`
}

type conversationTurnResponse struct {
	Conversation *store.Conversation     `json:"conversation"`
	Result       conversation.TurnResult `json:"result"`
}

func (s *Server) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	return s.validate.Struct(dst)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) turn(c *fiber.Ctx) error {
	var req turnRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	result := s.conversation.ProcessTurn(c.UserContext(), conversation.TurnRequest{
		Kind:     req.Kind,
		Messages: chat.FromWire(req.Messages),
		Document: req.Document,
		State:    req.State,
	})

	return c.JSON(result)
}

func (s *Server) extract(c *fiber.Ctx) error {
	var req extractRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	patches := s.extractor.Extract(c.UserContext(), req.State, chat.FromWire(req.Messages))
	if patches == nil {
		patches = []process.Patch{}
	}

	return c.JSON(extractResponse{Patches: patches})
}

func (s *Server) merge(c *fiber.Ctx) error {
	var req mergeRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	return c.JSON(stateResponse{State: process.Merge(req.State, req.Patches...)})
}

func (s *Server) patch(c *fiber.Ctx) error {
	var req patchRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	return c.JSON(documentResponse{Document: document.ApplyPatches(req.Document, req.Patches)})
}

func (s *Server) diagram(c *fiber.Ctx) error {
	var req diagramRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	if req.Source == "" {
		return c.JSON(diagramResponse{Diagram: s.renderer.RenderState(req.State)})
	}

	return c.JSON(diagramResponse{Diagram: diagram.Render(req.Source, req.State)})
}

func (s *Server) createConversation(c *fiber.Ctx) error {
	var req createConversationRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	conv, err := s.store.Create(req.Kind)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (s *Server) getConversation(c *fiber.Ctx) error {
	conv, err := s.store.Get(c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(conv)
}

// putConversation replaces the fields present in the body. The body must carry the version the
// client read; a newer stored version yields 409.
func (s *Server) putConversation(c *fiber.Ctx) error {
	var req updateConversationRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	conv, err := s.conversation.Update(c.UserContext(), c.Params("id"), func(conv *store.Conversation) error {
		if req.Messages != nil {
			conv.Messages = chat.FromWire(req.Messages)
		}
		if req.Document != nil {
			conv.Document = *req.Document
		}
		if req.Diagram != nil {
			conv.Diagram = *req.Diagram
		}
		if req.State != nil {
			conv.State = req.State
		}
		conv.Version = req.Version

		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(conv)
}

func (s *Server) deleteConversation(c *fiber.Ctx) error {
	if err := s.store.Delete(c.Params("id")); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) conversationTurn(c *fiber.Ctx) error {
	var req conversationTurnRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	msg := chat.FromWire([]chat.WireMessage{req.Message})[0]
	if msg.Text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message text is empty")
	}

	conv, result, err := s.conversation.Send(c.UserContext(), c.Params("id"), msg)
	if err != nil {
		return err
	}

	return c.JSON(conversationTurnResponse{
		Conversation: conv,
		Result:       result,
	})
}
