package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/pkg/config"
)

const corsPreflightMaxAge = 86400

var (
	corsMethods       = []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodOptions}
	corsHeaders       = []string{fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept, "X-Request-ID"}
	corsExposeHeaders = []string{fiber.HeaderContentLength, fiber.HeaderRetryAfter}
)

// CORSSettings resolves the lifecycle API's CORS policy from config. The
// identity header is always allowed, and credentials are only honoured for an
// explicit origin list.
func CORSSettings(cfg config.CORSConfig) fibercors.Config {
	origins := orDefault(cfg.AllowedOrigins, []string{"*"})
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}

	headers := orDefault(cfg.AllowedHeaders, corsHeaders)
	if !containsFold(headers, UserIDHeader) {
		headers = append(append([]string{}, headers...), UserIDHeader)
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = corsPreflightMaxAge
	}

	return fibercors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     strings.Join(orDefault(cfg.AllowedMethods, corsMethods), ","),
		AllowHeaders:     strings.Join(headers, ","),
		ExposeHeaders:    strings.Join(orDefault(cfg.ExposeHeaders, corsExposeHeaders), ","),
		AllowCredentials: cfg.Credentials && !wildcard,
		MaxAge:           maxAge,
	}
}

// NewCORS creates the CORS middleware for the API
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	return fibercors.New(CORSSettings(cfg))
}

func orDefault(values, fallback []string) []string {
	if len(values) > 0 {
		return values
	}
	return fallback
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}
