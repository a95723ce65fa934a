package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserIDHeader carries the caller identity set by the API gateway.
const UserIDHeader = "X-User-ID"

const userIDLocal = "user_id"

// Identity rejects requests without a user id header and stores the id in locals.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(UserIDHeader))
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing " + UserIDHeader + " header"})
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// UserID returns the id stored by Identity, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}
