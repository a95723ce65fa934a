package reservation

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/http/fiber/middleware"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

// Handler handles reservation HTTP requests
type Handler struct {
	service ports.ReservationService
}

// NewHandler creates a new reservation handler
func NewHandler(service ports.ReservationService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers reservation routes
func (h *Handler) RegisterRoutes(app fiber.Router, identity fiber.Handler) {
	reservations := app.Group("/reservations", identity)

	reservations.Post("/", h.CreateReservation)
	reservations.Get("/me", h.GetMyReservations)
	reservations.Post("/qr/start", h.StartFromQRCode)
	reservations.Get("/:id", h.GetReservation)
	reservations.Put("/:id/cancel", h.CancelReservation)
	reservations.Post("/:id/check-in", h.CheckIn)
	reservations.Post("/:id/start", h.StartSession)
}

// CreateReservationRequest represents the request body
type CreateReservationRequest struct {
	StationID         string    `json:"stationId"`
	ChargerID         string    `json:"chargerId"`
	ReservedStartTime time.Time `json:"reservedStartTime"`
	ReservedEndTime   time.Time `json:"reservedEndTime"`
	DurationMinutes   int       `json:"durationMinutes"`
}

// CreateReservation handles POST /reservations
func (h *Handler) CreateReservation(c *fiber.Ctx) error {
	var req CreateReservationRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewValidationError("body", "invalid JSON")
	}

	reservation, err := h.service.CreateReservation(c.UserContext(), &ports.CreateReservationRequest{
		UserID:            middleware.UserID(c),
		StationID:         req.StationID,
		ChargerID:         req.ChargerID,
		ReservedStartTime: req.ReservedStartTime,
		ReservedEndTime:   req.ReservedEndTime,
		DurationMinutes:   req.DurationMinutes,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(reservation)
}

// GetMyReservations handles GET /reservations/me
func (h *Handler) GetMyReservations(c *fiber.Ctx) error {
	reservations, err := h.service.ListUserReservations(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(reservations)
}

// GetReservation handles GET /reservations/:id
func (h *Handler) GetReservation(c *fiber.Ctx) error {
	reservation, err := h.service.GetReservation(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(reservation)
}

// CancelReservation handles PUT /reservations/:id/cancel?reason=
func (h *Handler) CancelReservation(c *fiber.Ctx) error {
	reservation, err := h.service.CancelReservation(c.UserContext(), c.Params("id"), middleware.UserID(c), c.Query("reason"))
	if err != nil {
		return err
	}
	return c.JSON(reservation)
}

// CheckIn handles POST /reservations/:id/check-in
func (h *Handler) CheckIn(c *fiber.Ctx) error {
	reservation, err := h.service.CheckIn(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(reservation)
}

// StartSession handles POST /reservations/:id/start
func (h *Handler) StartSession(c *fiber.Ctx) error {
	session, err := h.service.StartSessionFromReservation(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// StartFromQRCode handles POST /reservations/qr/start?qrCode=
func (h *Handler) StartFromQRCode(c *fiber.Ctx) error {
	session, err := h.service.StartSessionFromQRCode(c.UserContext(), c.Query("qrCode"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}
