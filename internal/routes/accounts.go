package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/airvend/airvend/internal/account"
	"github.com/airvend/airvend/internal/eligibility"
	"github.com/airvend/airvend/internal/ledger"
)

// RegisterAccountRoutes wires account registration, balance snapshot and
// eligibility endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, ledgerHandler *ledger.Handler, gate *eligibility.Gate) {
	r.Post("/accounts", h.Register)
	r.Get("/accounts/:accountId", h.Get)
	r.Get("/accounts/:accountId/balance", ledgerHandler.Snapshot)
	r.Get("/accounts/:accountId/eligibility", func(c *fiber.Ctx) error {
		decision, err := gate.Check(c.UserContext(), c.Params("accountId"))
		if err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"account_id": c.Params("accountId"),
			"eligible":   decision.Eligible,
			"reason":     decision.Reason,
		})
	})
}
