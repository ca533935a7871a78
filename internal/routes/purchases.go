package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/airvend/airvend/internal/purchase"
)

// RegisterPurchaseRoutes wires the purchase workflow endpoint behind the
// per-account rate limiter.
func RegisterPurchaseRoutes(r fiber.Router, h *purchase.Handler, rateLimiter fiber.Handler) {
	r.Post("/purchases", rateLimiter, h.Create)
}
