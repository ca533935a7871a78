package purchase

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/eligibility"
	"github.com/airvend/airvend/internal/ledger"
	"github.com/airvend/airvend/internal/network"
	"github.com/airvend/airvend/internal/settlement"
)

// Handler exposes the purchase endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type purchaseRequest struct {
	PurchaserID     string          `json:"purchaser_id"`
	RecipientMSISDN string          `json:"recipient_msisdn"`
	ProductNetwork  string          `json:"product_network"`
	ProductWallet   string          `json:"product_wallet"`
	FaceValue       decimal.Decimal `json:"face_value"`
	Markup          decimal.Decimal `json:"markup"`
	Mode            string          `json:"mode"`
	FundFromPool    bool            `json:"fund_from_pool"`
	PoolID          string          `json:"pool_id"`
	ClientTxID      string          `json:"client_tx_id"`
}

type shareResponse struct {
	Party  string `json:"party"`
	Amount string `json:"amount"`
}

// Create processes a purchase event.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	mode := settlement.Mode(req.Mode)
	if mode == "" {
		mode = settlement.ModeSelf
	}
	if !mode.Valid() {
		return fiber.NewError(http.StatusBadRequest, "unknown purchase mode")
	}

	res, err := h.service.Purchase(c.UserContext(), Input{
		PurchaserID:     req.PurchaserID,
		RecipientMSISDN: req.RecipientMSISDN,
		ProductNetwork:  network.Network(req.ProductNetwork),
		ProductWallet:   req.ProductWallet,
		FaceValue:       req.FaceValue,
		Markup:          req.Markup,
		Mode:            mode,
		FundFromPool:    req.FundFromPool,
		PoolID:          req.PoolID,
		ClientTxID:      req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNetworkMismatch), errors.Is(err, ErrUnknownNetwork):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrRecipientNotRegistered):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, eligibility.ErrNotEligible):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ledger.ErrPoolExhausted), errors.Is(err, ledger.ErrExcessiveAllocation):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrDuplicateAllocation):
			return fiber.NewError(http.StatusConflict, "duplicate purchase")
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, settlement.ErrNegativeMarkup):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, settlement.ErrUnmappedContext):
			// Configuration defect: abort loudly, never settle partially.
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	shares := make([]shareResponse, 0, len(res.Settlement.Shares))
	for _, s := range res.Settlement.Shares {
		shares = append(shares, shareResponse{Party: string(s.Party), Amount: s.Amount.String()})
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"client_tx_id":   res.ClientTxID,
		"network":        string(res.Network),
		"markup":         res.Settlement.Markup.String(),
		"shares":         shares,
		"completed_at":   res.CompletedAt,
	})
}
