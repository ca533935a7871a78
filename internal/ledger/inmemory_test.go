package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/config"
)

func newTestStore() Store {
	return NewInMemory(PolicyFromRules(config.DefaultRules().Allocation))
}

func d(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func TestCreditIncreasesBalanceAndLifetimeEarned(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	if err := s.EnsureAccount(ctx, "acct-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	state, err := s.Credit(ctx, "acct-1", WalletCashback, d("25.50"))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !state.Balance.Equal(d("25.50")) || !state.LifetimeEarned.Equal(d("25.50")) {
		t.Fatalf("unexpected wallet state: %+v", state)
	}

	state, err = s.Credit(ctx, "acct-1", WalletCashback, d("4.50"))
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if !state.Balance.Equal(d("30")) || !state.LifetimeEarned.Equal(d("30")) {
		t.Fatalf("unexpected wallet state after second credit: %+v", state)
	}
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")

	if _, err := s.Credit(ctx, "acct-1", WalletCashback, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := s.Credit(ctx, "acct-1", WalletCashback, d("-1")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestDebitNeverDrivesBalanceNegative(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")
	SeedWallet(s, "acct-1", WalletAirtime, d("100"))

	if _, err := s.Debit(ctx, "acct-1", WalletAirtime, d("150")); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Failed debit leaves the balance untouched.
	snap, err := s.Snapshot(ctx, "acct-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Wallets[WalletAirtime].Balance.Equal(d("100")) {
		t.Fatalf("balance changed after failed debit: %+v", snap.Wallets[WalletAirtime])
	}

	state, err := s.Debit(ctx, "acct-1", WalletAirtime, d("100"))
	if err != nil {
		t.Fatalf("debit to zero: %v", err)
	}
	if !state.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", state.Balance)
	}
}

func TestLifetimeEarnedSurvivesDebits(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")

	s.Credit(ctx, "acct-1", WalletCashback, d("50"))
	s.Debit(ctx, "acct-1", WalletCashback, d("30"))
	state, err := s.Credit(ctx, "acct-1", WalletCashback, d("10"))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !state.Balance.Equal(d("30")) {
		t.Fatalf("expected balance 30, got %s", state.Balance)
	}
	if !state.LifetimeEarned.Equal(d("60")) {
		t.Fatalf("expected lifetime earned 60, got %s", state.LifetimeEarned)
	}
}

func TestAllocateFromPoolHappyPath(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")
	s.EnsurePool(ctx, "pool:data")
	if _, err := s.TopUpPool(ctx, "pool:data", d("5000")); err != nil {
		t.Fatalf("top up: %v", err)
	}

	alloc, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-1", d("200"))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !alloc.Amount.Equal(d("200")) {
		t.Fatalf("unexpected allocation amount %s", alloc.Amount)
	}
	if !alloc.ExpiresAt.After(alloc.CreatedAt) {
		t.Fatalf("allocation must carry a future expiry: %+v", alloc)
	}

	remaining, err := s.PoolBalance(ctx, "pool:data")
	if err != nil {
		t.Fatalf("pool balance: %v", err)
	}
	if !remaining.Equal(d("4800")) {
		t.Fatalf("expected pool balance 4800, got %s", remaining)
	}

	snap, _ := s.Snapshot(ctx, "acct-1")
	w := snap.Wallets[WalletData]
	if !w.Balance.Equal(d("200")) || !w.Allocated.Equal(d("200")) || !w.Available.IsZero() {
		t.Fatalf("unexpected wallet state after allocation: %+v", w)
	}
}

func TestAllocatePoolExhausted(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")
	s.EnsurePool(ctx, "pool:data")
	s.TopUpPool(ctx, "pool:data", d("100"))

	if _, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-1", d("150")); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	// Failed allocations never mutate the pool.
	remaining, _ := s.PoolBalance(ctx, "pool:data")
	if !remaining.Equal(d("100")) {
		t.Fatalf("pool mutated by failed allocation: %s", remaining)
	}
}

func TestAllocateSafetyCap(t *testing.T) {
	// Data wallet capacity 10000, cap ratio 0.9: a single request above 9000
	// needs a manual override.
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")
	s.EnsurePool(ctx, "pool:data")
	s.TopUpPool(ctx, "pool:data", d("50000"))

	if _, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-big", d("9500")); !errors.Is(err, ErrExcessiveAllocation) {
		t.Fatalf("expected ErrExcessiveAllocation, got %v", err)
	}

	if _, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-ok", d("9000")); err != nil {
		t.Fatalf("allocation at the cap should succeed: %v", err)
	}

	// Outstanding allocated value shrinks the remaining capacity: 10000-9000
	// leaves 1000 unallocated, so anything above 900 is refused.
	if _, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-2", d("901")); !errors.Is(err, ErrExcessiveAllocation) {
		t.Fatalf("expected ErrExcessiveAllocation on shrunk capacity, got %v", err)
	}
	if _, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-3", d("900")); err != nil {
		t.Fatalf("allocation within shrunk capacity should succeed: %v", err)
	}
}

func TestAllocateIdempotentReplay(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")
	s.EnsurePool(ctx, "pool:data")
	s.TopUpPool(ctx, "pool:data", d("1000"))

	first, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-1", d("100"))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	replay, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-1", d("100"))
	if !errors.Is(err, ErrDuplicateAllocation) {
		t.Fatalf("expected ErrDuplicateAllocation, got %v", err)
	}
	if replay.ID != first.ID || !replay.Amount.Equal(first.Amount) {
		t.Fatalf("replay returned different allocation: %+v vs %+v", replay, first)
	}

	// The wallet was credited exactly once.
	snap, _ := s.Snapshot(ctx, "acct-1")
	if !snap.Wallets[WalletData].Balance.Equal(d("100")) {
		t.Fatalf("replay double-credited wallet: %+v", snap.Wallets[WalletData])
	}
	remaining, _ := s.PoolBalance(ctx, "pool:data")
	if !remaining.Equal(d("900")) {
		t.Fatalf("replay drained pool twice: %s", remaining)
	}
}

func TestPoolConservation(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsurePool(ctx, "pool:airtime")
	s.TopUpPool(ctx, "pool:airtime", d("1000"))

	succeeded := decimal.Zero
	for i := 0; i < 20; i++ {
		accountID := fmt.Sprintf("acct-%d", i)
		s.EnsureAccount(ctx, accountID)
		amount := d("90")
		_, err := s.AllocateFromPool(ctx, "pool:airtime", accountID, WalletAirtime, fmt.Sprintf("alloc-%d", i), amount)
		switch {
		case err == nil:
			succeeded = succeeded.Add(amount)
		case errors.Is(err, ErrPoolExhausted):
			// expected once the pool runs dry
		default:
			t.Fatalf("allocation %d: %v", i, err)
		}
	}

	remaining, _ := s.PoolBalance(ctx, "pool:airtime")
	if !remaining.Equal(d("1000").Sub(succeeded)) {
		t.Fatalf("pool balance %s, want %s", remaining, d("1000").Sub(succeeded))
	}
}

func TestConcurrentAllocationsNeverOverdrawPool(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsurePool(ctx, "pool:data")
	s.TopUpPool(ctx, "pool:data", d("150"))
	s.EnsureAccount(ctx, "acct-a")
	s.EnsureAccount(ctx, "acct-b")

	// Each request passes the check alone; together they exceed the pool.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, accountID := range []string{"acct-a", "acct-b"} {
		wg.Add(1)
		go func(i int, accountID string) {
			defer wg.Done()
			_, results[i] = s.AllocateFromPool(ctx, "pool:data", accountID, WalletData, fmt.Sprintf("alloc-%s", accountID), d("100"))
		}(i, accountID)
	}
	wg.Wait()

	var successes, exhausted int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrPoolExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || exhausted != 1 {
		t.Fatalf("expected exactly one success and one exhaustion, got %d/%d", successes, exhausted)
	}

	remaining, _ := s.PoolBalance(ctx, "pool:data")
	if !remaining.Equal(d("50")) {
		t.Fatalf("pool overdraw: remaining %s", remaining)
	}
}

func TestConcurrentCreditsAndDebits(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")
	SeedWallet(s, "acct-1", WalletCashback, d("1000"))

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Credit(ctx, "acct-1", WalletCashback, d("5")); err != nil {
				t.Errorf("credit: %v", err)
			}
			if _, err := s.Debit(ctx, "acct-1", WalletCashback, d("5")); err != nil {
				t.Errorf("debit: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, _ := s.Snapshot(ctx, "acct-1")
	if !snap.Wallets[WalletCashback].Balance.Equal(d("1000")) {
		t.Fatalf("balance drifted under concurrency: %s", snap.Wallets[WalletCashback].Balance)
	}
}

func TestAllocationExpiryFreesCapacity(t *testing.T) {
	rules := config.DefaultRules().Allocation
	rules.ExpiryHours = 0 // allocations lapse immediately
	s := NewInMemory(PolicyFromRules(rules))
	ctx := context.Background()
	s.EnsureAccount(ctx, "acct-1")
	s.EnsurePool(ctx, "pool:data")
	s.TopUpPool(ctx, "pool:data", d("20000"))

	if _, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-1", d("9000")); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	// The first allocation has expired, so full capacity is unallocated again.
	if _, err := s.AllocateFromPool(ctx, "pool:data", "acct-1", WalletData, "alloc-2", d("9000")); err != nil {
		t.Fatalf("allocate after expiry: %v", err)
	}

	snap, _ := s.Snapshot(ctx, "acct-1")
	w := snap.Wallets[WalletData]
	if !w.Balance.Equal(d("18000")) {
		t.Fatalf("expected balance 18000, got %s", w.Balance)
	}
	if !w.Allocated.IsZero() {
		t.Fatalf("expired allocations still counted as allocated: %s", w.Allocated)
	}
}

func TestOperationsOnUnknownAccountOrPool(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if _, err := s.Credit(ctx, "ghost", WalletCashback, d("1")); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := s.TopUpPool(ctx, "ghost-pool", d("1")); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
	if _, err := s.Snapshot(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for snapshot, got %v", err)
	}
}
