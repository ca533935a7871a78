package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/config"
)

var (
	// ErrInvalidAmount rejects a non-positive amount on any mutating operation.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance occurs when a debit exceeds the wallet balance.
	// The debit fails whole; balances are never driven negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPoolExhausted occurs when a pool lacks funds to cover an allocation.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrExcessiveAllocation indicates a single allocation request breached
	// the safety cap on the wallet's unallocated capacity. Clearing it
	// requires a manual override outside the engine.
	ErrExcessiveAllocation = errors.New("allocation exceeds safety cap")

	// ErrDuplicateAllocation indicates the allocation identifier was already
	// committed; the stored allocation is returned alongside so retried
	// requests do not double-credit.
	ErrDuplicateAllocation = errors.New("duplicate allocation")

	// ErrAccountNotFound occurs when an operation references an account that
	// was never provisioned through EnsureAccount.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPoolNotFound occurs when an operation references an unknown pool.
	ErrPoolNotFound = errors.New("pool not found")
)

// Well-known wallet names. Wallets are created lazily on first credit, so the
// set is open; these are the names the purchase workflow settles into.
const (
	WalletAirtime    = "airtime"
	WalletData       = "data"
	WalletCashback   = "cashback"
	WalletCommission = "commission"
	WalletFees       = "fees"
)

// House account codes holding platform-retained and escrowed value.
const (
	PlatformAccountCode = "house:platform"
	EscrowAccountCode   = "house:escrow"
	AdminAccountCode    = "house:admin"
)

// WalletState is a point-in-time view of one wallet. Allocated is the sum of
// unexpired pool allocations into the wallet; Available is the balance net of
// that allocated value, floored at zero.
type WalletState struct {
	Name           string
	Balance        decimal.Decimal
	Allocated      decimal.Decimal
	Available      decimal.Decimal
	LifetimeEarned decimal.Decimal
}

// BalanceSnapshot is a consistent view of every wallet an account holds,
// taken under the same lock scope mutations use.
type BalanceSnapshot struct {
	AccountID string
	Wallets   map[string]WalletState
	AsOf      time.Time
}

// Allocation records a committed transfer from a pool into a wallet. It is
// immutable once committed; once expired it stops counting toward the
// wallet's allocated value.
type Allocation struct {
	ID        string
	PoolID    string
	AccountID string
	Wallet    string
	Amount    decimal.Decimal
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the allocated value has lapsed at the given time.
func (a Allocation) Expired(at time.Time) bool {
	return !a.ExpiresAt.After(at)
}

// Policy carries the allocation safety settings compiled from configuration.
type Policy struct {
	// CapRatio bounds one allocation to this share of the target wallet's
	// unallocated capacity.
	CapRatio decimal.Decimal
	// Expiry is the lifetime stamped on each allocation.
	Expiry time.Duration
	// WalletCapacity caps the outstanding allocated value per wallet name;
	// DefaultCapacity applies to names not listed.
	WalletCapacity  map[string]decimal.Decimal
	DefaultCapacity decimal.Decimal
}

// PolicyFromRules converts the externalized allocation rules into a Policy.
func PolicyFromRules(rules config.AllocationRules) Policy {
	capacities := make(map[string]decimal.Decimal, len(rules.WalletCapacity))
	for name, capValue := range rules.WalletCapacity {
		capacities[name] = decimal.NewFromFloat(capValue)
	}
	return Policy{
		CapRatio:        decimal.NewFromFloat(rules.CapRatio),
		Expiry:          time.Duration(rules.ExpiryHours) * time.Hour,
		WalletCapacity:  capacities,
		DefaultCapacity: decimal.NewFromFloat(rules.DefaultCapacity),
	}
}

func (p Policy) capacityFor(wallet string) decimal.Decimal {
	if capValue, ok := p.WalletCapacity[wallet]; ok {
		return capValue
	}
	return p.DefaultCapacity
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
// Credit and Debit are the only primitives that mutate a wallet balance;
// AllocateFromPool is the only primitive that moves value out of a pool.
type Store interface {
	EnsureAccount(ctx context.Context, accountID string) error
	EnsurePool(ctx context.Context, poolID string) error
	Credit(ctx context.Context, accountID, wallet string, amount decimal.Decimal) (WalletState, error)
	Debit(ctx context.Context, accountID, wallet string, amount decimal.Decimal) (WalletState, error)
	AllocateFromPool(ctx context.Context, poolID, accountID, wallet, allocationID string, amount decimal.Decimal) (Allocation, error)
	TopUpPool(ctx context.Context, poolID string, amount decimal.Decimal) (decimal.Decimal, error)
	PoolBalance(ctx context.Context, poolID string) (decimal.Decimal, error)
	Snapshot(ctx context.Context, accountID string) (BalanceSnapshot, error)
}
