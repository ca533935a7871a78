package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/airvend/airvend/internal/settlement"
)

// Handler exposes account registration and lookup endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	MSISDN string `json:"msisdn"`
	Role   string `json:"role"`
}

type accountResponse struct {
	ID     string `json:"id"`
	MSISDN string `json:"msisdn"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// Register provisions an account and its ledger presence.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.service.Register(c.UserContext(), RegisterInput{
		MSISDN: req.MSISDN,
		Role:   settlement.Role(req.Role),
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(accountResponse{
		ID:     acct.ID,
		MSISDN: acct.MSISDN,
		Role:   string(acct.Role),
		Status: acct.Status,
	})
}

// Get returns account metadata.
func (h *Handler) Get(c *fiber.Ctx) error {
	acct, err := h.service.Get(c.UserContext(), c.Params("accountId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(accountResponse{
		ID:     acct.ID,
		MSISDN: acct.MSISDN,
		Role:   string(acct.Role),
		Status: acct.Status,
	})
}
