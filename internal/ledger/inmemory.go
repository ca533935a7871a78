package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// inMemoryStore is a concurrency-safe in-memory ledger. Mutations run under
// per-account (and, for pool operations, additionally per-pool) locks so
// check-then-write sequences are atomic without serializing unrelated
// accounts. Pool locks are always taken before account locks.
type inMemoryStore struct {
	policy Policy

	mu          sync.Mutex
	accounts    map[string]*accountState
	pools       map[string]*poolState
	allocations map[string]Allocation
}

type accountState struct {
	mu      sync.Mutex
	wallets map[string]*walletState
}

type walletState struct {
	balance        decimal.Decimal
	lifetimeEarned decimal.Decimal
	allocations    []Allocation
}

type poolState struct {
	mu             sync.Mutex
	totalAvailable decimal.Decimal
	totalTopUps    decimal.Decimal
}

// NewInMemory creates an in-memory ledger store. It backs unit tests and
// development mode the same way the Postgres store backs production.
func NewInMemory(policy Policy) Store {
	return &inMemoryStore{
		policy:      policy,
		accounts:    make(map[string]*accountState),
		pools:       make(map[string]*poolState),
		allocations: make(map[string]Allocation),
	}
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[accountID]; !exists {
		s.accounts[accountID] = &accountState{wallets: make(map[string]*walletState)}
	}
	return nil
}

func (s *inMemoryStore) EnsurePool(_ context.Context, poolID string) error {
	if poolID == "" {
		return fmt.Errorf("pool id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[poolID]; !exists {
		s.pools[poolID] = &poolState{totalAvailable: decimal.Zero, totalTopUps: decimal.Zero}
	}
	return nil
}

func (s *inMemoryStore) account(accountID string) (*accountState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return acc, nil
}

func (s *inMemoryStore) pool(poolID string) (*poolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	return p, nil
}

func (a *accountState) wallet(name string) *walletState {
	w, ok := a.wallets[name]
	if !ok {
		w = &walletState{balance: decimal.Zero, lifetimeEarned: decimal.Zero}
		a.wallets[name] = w
	}
	return w
}

func (w *walletState) allocatedAt(at time.Time) decimal.Decimal {
	allocated := decimal.Zero
	for _, alloc := range w.allocations {
		if !alloc.Expired(at) {
			allocated = allocated.Add(alloc.Amount)
		}
	}
	return allocated
}

func (w *walletState) stateAt(name string, at time.Time) WalletState {
	allocated := w.allocatedAt(at)
	available := w.balance.Sub(allocated)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return WalletState{
		Name:           name,
		Balance:        w.balance,
		Allocated:      allocated,
		Available:      available,
		LifetimeEarned: w.lifetimeEarned,
	}
}

func (s *inMemoryStore) Credit(_ context.Context, accountID, wallet string, amount decimal.Decimal) (WalletState, error) {
	if !amount.IsPositive() {
		return WalletState{}, ErrInvalidAmount
	}
	acc, err := s.account(accountID)
	if err != nil {
		return WalletState{}, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	w := acc.wallet(wallet)
	w.balance = w.balance.Add(amount)
	w.lifetimeEarned = w.lifetimeEarned.Add(amount)
	return w.stateAt(wallet, time.Now().UTC()), nil
}

func (s *inMemoryStore) Debit(_ context.Context, accountID, wallet string, amount decimal.Decimal) (WalletState, error) {
	if !amount.IsPositive() {
		return WalletState{}, ErrInvalidAmount
	}
	acc, err := s.account(accountID)
	if err != nil {
		return WalletState{}, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	w := acc.wallet(wallet)
	if w.balance.LessThan(amount) {
		return WalletState{}, ErrInsufficientBalance
	}
	w.balance = w.balance.Sub(amount)
	return w.stateAt(wallet, time.Now().UTC()), nil
}

func (s *inMemoryStore) AllocateFromPool(_ context.Context, poolID, accountID, wallet, allocationID string, amount decimal.Decimal) (Allocation, error) {
	if !amount.IsPositive() {
		return Allocation{}, ErrInvalidAmount
	}
	if allocationID == "" {
		return Allocation{}, fmt.Errorf("allocation id is required")
	}

	p, err := s.pool(poolID)
	if err != nil {
		return Allocation{}, err
	}
	acc, err := s.account(accountID)
	if err != nil {
		return Allocation{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	acc.mu.Lock()
	defer acc.mu.Unlock()

	s.mu.Lock()
	existing, dup := s.allocations[allocationID]
	s.mu.Unlock()
	if dup {
		return existing, ErrDuplicateAllocation
	}

	if p.totalAvailable.LessThan(amount) {
		return Allocation{}, ErrPoolExhausted
	}

	now := time.Now().UTC()
	w := acc.wallet(wallet)
	unallocated := s.policy.capacityFor(wallet).Sub(w.allocatedAt(now))
	if unallocated.IsNegative() {
		unallocated = decimal.Zero
	}
	if amount.GreaterThan(unallocated.Mul(s.policy.CapRatio)) {
		return Allocation{}, ErrExcessiveAllocation
	}

	alloc := Allocation{
		ID:        allocationID,
		PoolID:    poolID,
		AccountID: accountID,
		Wallet:    wallet,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: now.Add(s.policy.Expiry),
	}

	p.totalAvailable = p.totalAvailable.Sub(amount)
	w.balance = w.balance.Add(amount)
	w.lifetimeEarned = w.lifetimeEarned.Add(amount)
	w.allocations = append(w.allocations, alloc)

	s.mu.Lock()
	s.allocations[allocationID] = alloc
	s.mu.Unlock()

	return alloc, nil
}

func (s *inMemoryStore) TopUpPool(_ context.Context, poolID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	p, err := s.pool(poolID)
	if err != nil {
		return decimal.Zero, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalAvailable = p.totalAvailable.Add(amount)
	p.totalTopUps = p.totalTopUps.Add(amount)
	return p.totalAvailable, nil
}

func (s *inMemoryStore) PoolBalance(_ context.Context, poolID string) (decimal.Decimal, error) {
	p, err := s.pool(poolID)
	if err != nil {
		return decimal.Zero, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalAvailable, nil
}

func (s *inMemoryStore) Snapshot(_ context.Context, accountID string) (BalanceSnapshot, error) {
	acc, err := s.account(accountID)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	now := time.Now().UTC()
	snapshot := BalanceSnapshot{
		AccountID: accountID,
		Wallets:   make(map[string]WalletState, len(acc.wallets)),
		AsOf:      now,
	}
	for name, w := range acc.wallets {
		snapshot.Wallets[name] = w.stateAt(name, now)
	}
	return snapshot, nil
}
