package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/settlement"
)

// RegisterSettlementRoutes wires the settlement preview endpoint: a pure
// computation with no ledger effect, used by the portal to show a breakdown
// before confirming a purchase.
func RegisterSettlementRoutes(r fiber.Router, calculator *settlement.Calculator) {
	type previewRequest struct {
		Markup decimal.Decimal `json:"markup"`
		Role   string          `json:"role"`
		Mode   string          `json:"mode"`
	}

	r.Post("/settlements/preview", func(c *fiber.Ctx) error {
		var req previewRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		result, err := calculator.Compute(req.Markup, settlement.Role(req.Role), settlement.Mode(req.Mode))
		if err != nil {
			switch {
			case errors.Is(err, settlement.ErrNegativeMarkup):
				return fiber.NewError(http.StatusBadRequest, err.Error())
			case errors.Is(err, settlement.ErrUnmappedContext):
				return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
			default:
				return fiber.NewError(http.StatusInternalServerError, err.Error())
			}
		}

		shares := make([]fiber.Map, 0, len(result.Shares))
		for _, s := range result.Shares {
			shares = append(shares, fiber.Map{"party": string(s.Party), "amount": s.Amount.String()})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"markup": result.Markup.String(),
			"shares": shares,
		})
	})
}
