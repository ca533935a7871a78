package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/airvend/airvend/internal/ledger"
)

// RegisterPoolRoutes wires pooled-fund administration and allocation endpoints.
func RegisterPoolRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/pools/:poolId", h.PoolBalance)
	r.Post("/pools/:poolId/topup", h.TopUp)
	r.Post("/pools/:poolId/allocations", h.Allocate)
}
