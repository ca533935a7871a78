package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/airvend/airvend/internal/network"
)

// RegisterNetworkRoutes wires the carrier classification endpoint. An Unknown
// result is not an error at this level; callers decide whether to block or
// prompt for manual network selection.
func RegisterNetworkRoutes(r fiber.Router, classifier *network.Classifier) {
	r.Get("/networks/classify", func(c *fiber.Ctx) error {
		msisdn := c.Query("msisdn")
		if msisdn == "" {
			return fiber.NewError(http.StatusBadRequest, "msisdn query parameter is required")
		}
		classified := classifier.Classify(msisdn)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"msisdn":  msisdn,
			"network": string(classified),
			"known":   classified != network.Unknown,
		})
	})
}
