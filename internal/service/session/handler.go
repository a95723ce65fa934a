package session

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/http/fiber/middleware"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

// Handler handles charging session HTTP requests
type Handler struct {
	service ports.SessionService
}

// NewHandler creates a new session handler
func NewHandler(service ports.SessionService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers session routes
func (h *Handler) RegisterRoutes(app fiber.Router, identity fiber.Handler) {
	sessions := app.Group("/sessions")

	// called by the payment service, not by users
	sessions.Put("/:id/paid", h.MarkPaid)

	sessions.Post("/start", identity, h.StartSession)
	sessions.Get("/me", identity, h.ListMySessions)
	sessions.Get("/:id", identity, h.GetSession)
	sessions.Get("/:id/status", identity, h.GetSessionStatus)
	sessions.Post("/:id/stop", identity, h.StopSession)
	sessions.Post("/:id/cancel", identity, h.CancelSession)
	sessions.Post("/:id/pay", identity, h.PaySession)
}

// StartSessionRequest represents the request body
type StartSessionRequest struct {
	StationID string `json:"stationId"`
	ChargerID string `json:"chargerId"`
}

// StartSession handles POST /sessions/start
func (h *Handler) StartSession(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("body", "invalid JSON")
	}

	session, err := h.service.StartSession(c.UserContext(), &ports.StartSessionRequest{
		UserID:    middleware.UserID(c),
		StationID: req.StationID,
		ChargerID: req.ChargerID,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

// ListMySessions handles GET /sessions/me
func (h *Handler) ListMySessions(c *fiber.Ctx) error {
	sessions, err := h.service.ListUserSessions(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(sessions)
}

// GetSession handles GET /sessions/:id
func (h *Handler) GetSession(c *fiber.Ctx) error {
	session, err := h.service.GetSession(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// GetSessionStatus handles GET /sessions/:id/status
func (h *Handler) GetSessionStatus(c *fiber.Ctx) error {
	status, err := h.service.GetSessionStatus(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// StopSession handles POST /sessions/:id/stop
func (h *Handler) StopSession(c *fiber.Ctx) error {
	session, err := h.service.StopSession(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// CancelSession handles POST /sessions/:id/cancel
func (h *Handler) CancelSession(c *fiber.Ctx) error {
	session, err := h.service.CancelSession(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// PaySession handles POST /sessions/:id/pay
func (h *Handler) PaySession(c *fiber.Ctx) error {
	session, err := h.service.PaySession(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// MarkPaid handles PUT /sessions/:id/paid?paymentId=
func (h *Handler) MarkPaid(c *fiber.Ctx) error {
	session, err := h.service.MarkSessionAsPaid(c.UserContext(), c.Params("id"), c.Query("paymentId"))
	if err != nil {
		return err
	}
	return c.JSON(session)
}
