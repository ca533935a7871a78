package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/airvend/airvend/internal/ledger"
	"github.com/airvend/airvend/internal/settlement"
)

// Service provisions accounts and their ledger presence.
type Service struct {
	repo  Repository
	store ledger.Store
}

// NewService builds an account service instance.
func NewService(repo Repository, store ledger.Store) *Service {
	return &Service{repo: repo, store: store}
}

// RegisterInput captures data required to register an account.
type RegisterInput struct {
	MSISDN string
	Role   settlement.Role
}

// Register creates the account record and its ledger account so settlement
// credits can land immediately after registration.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	if input.MSISDN == "" {
		return Account{}, fmt.Errorf("msisdn is required")
	}
	if !input.Role.Valid() {
		return Account{}, fmt.Errorf("unknown role %q", input.Role)
	}

	acct := Account{
		ID:        uuid.NewString(),
		MSISDN:    input.MSISDN,
		Role:      input.Role,
		Status:    statusActive,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.EnsureAccount(ctx, acct.ID); err != nil {
		return Account{}, err
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}

	return acct, nil
}

// Get retrieves account metadata by identifier.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByMSISDN retrieves account metadata by subscriber number.
func (s *Service) GetByMSISDN(ctx context.Context, msisdn string) (Account, error) {
	return s.repo.FindByMSISDN(ctx, msisdn)
}
