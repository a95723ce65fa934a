package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// StatusFor maps a lifecycle error to its HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrStateConflict), errors.Is(err, domain.ErrCapacity):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrDependency):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)

		body := fiber.Map{"error": err.Error()}

		var ve *domain.ValidationError
		var sc *domain.StateConflictError
		switch {
		case errors.As(err, &ve):
			body["field"] = ve.Field
		case errors.As(err, &sc):
			body["kind"] = sc.Kind
		case errors.Is(err, domain.ErrCapacity):
			body["kind"] = "no_capacity"
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("Request failed", zap.Error(err), zap.String("path", c.Path()), zap.Int("status", code))
		}

		return c.Status(code).JSON(body)
	}
}
