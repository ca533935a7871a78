package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/airvend/airvend/internal/ledger"
)

// RegisterLedgerRoutes wires the credit/debit primitives.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/ledger/credit", h.Credit)
	r.Post("/ledger/debit", h.Debit)
}
