package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Handler exposes ledger primitives over HTTP.
type Handler struct {
	store Store
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type mutationRequest struct {
	AccountID string          `json:"account_id"`
	Wallet    string          `json:"wallet"`
	Amount    decimal.Decimal `json:"amount"`
}

type allocationRequest struct {
	AccountID    string          `json:"account_id"`
	Wallet       string          `json:"wallet"`
	Amount       decimal.Decimal `json:"amount"`
	AllocationID string          `json:"allocation_id"`
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func walletStateResponse(state WalletState) fiber.Map {
	return fiber.Map{
		"wallet":          state.Name,
		"balance":         state.Balance.String(),
		"allocated":       state.Allocated.String(),
		"available":       state.Available.String(),
		"lifetime_earned": state.LifetimeEarned.String(),
	}
}

// Credit increases a wallet balance.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req mutationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	state, err := h.store.Credit(c.UserContext(), req.AccountID, req.Wallet, req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(walletStateResponse(state))
}

// Debit decreases a wallet balance.
func (h *Handler) Debit(c *fiber.Ctx) error {
	var req mutationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	state, err := h.store.Debit(c.UserContext(), req.AccountID, req.Wallet, req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(walletStateResponse(state))
}

// Allocate moves value from a pool into a wallet.
func (h *Handler) Allocate(c *fiber.Ctx) error {
	poolID := c.Params("poolId")
	var req allocationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.AllocationID == "" {
		req.AllocationID = uuid.NewString()
	}
	alloc, err := h.store.AllocateFromPool(c.UserContext(), poolID, req.AccountID, req.Wallet, req.AllocationID, req.Amount)
	if err != nil && !errors.Is(err, ErrDuplicateAllocation) {
		return mapLedgerError(err)
	}

	status := http.StatusCreated
	if errors.Is(err, ErrDuplicateAllocation) {
		// Replay of a committed allocation: return it without re-applying.
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"allocation_id": alloc.ID,
		"pool_id":       alloc.PoolID,
		"account_id":    alloc.AccountID,
		"wallet":        alloc.Wallet,
		"amount":        alloc.Amount.String(),
		"created_at":    alloc.CreatedAt,
		"expires_at":    alloc.ExpiresAt,
	})
}

// TopUp records an administrative pool top-up.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	poolID := c.Params("poolId")
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.store.EnsurePool(c.UserContext(), poolID); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.store.TopUpPool(c.UserContext(), poolID, req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"pool_id":         poolID,
		"total_available": balance.String(),
	})
}

// PoolBalance returns a pool's available funds.
func (h *Handler) PoolBalance(c *fiber.Ctx) error {
	balance, err := h.store.PoolBalance(c.UserContext(), c.Params("poolId"))
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"pool_id":         c.Params("poolId"),
		"total_available": balance.String(),
	})
}

// Snapshot returns the account's consistent balance view.
func (h *Handler) Snapshot(c *fiber.Ctx) error {
	snapshot, err := h.store.Snapshot(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return mapLedgerError(err)
	}
	wallets := make(map[string]fiber.Map, len(snapshot.Wallets))
	for name, state := range snapshot.Wallets {
		wallets[name] = walletStateResponse(state)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": snapshot.AccountID,
		"wallets":    wallets,
		"as_of":      snapshot.AsOf,
	})
}

func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ErrPoolExhausted):
		return fiber.NewError(http.StatusConflict, "pool exhausted")
	case errors.Is(err, ErrExcessiveAllocation):
		return fiber.NewError(http.StatusConflict, "allocation exceeds safety cap")
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrPoolNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
