package eligibility

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/config"
	"github.com/airvend/airvend/internal/ledger"
)

func newTestGate(t *testing.T) (*Gate, ledger.Store) {
	t.Helper()
	rules := config.DefaultRules()
	store := ledger.NewInMemory(ledger.PolicyFromRules(rules.Allocation))
	return NewGate(store, rules.Eligibility), store
}

func TestCheckSufficientAccountIsIneligible(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()
	store.EnsureAccount(ctx, "acct-1")
	ledger.SeedWallet(store, "acct-1", ledger.WalletAirtime, decimal.NewFromInt(200))
	ledger.SeedWallet(store, "acct-1", ledger.WalletData, decimal.NewFromInt(5000))

	decision, err := gate.Check(ctx, "acct-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Eligible {
		t.Fatalf("account above both thresholds should be ineligible: %+v", decision)
	}
	if decision.Reason == "" {
		t.Fatalf("ineligible decision must carry a reason")
	}
}

func TestCheckEmptyAccountIsEligible(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()
	store.EnsureAccount(ctx, "acct-1")

	decision, err := gate.Check(ctx, "acct-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !decision.Eligible {
		t.Fatalf("empty account should be eligible: %+v", decision)
	}
}

func TestCheckOneSufficientWalletStaysEligible(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()
	store.EnsureAccount(ctx, "acct-1")
	// Airtime above threshold but data below: still eligible.
	ledger.SeedWallet(store, "acct-1", ledger.WalletAirtime, decimal.NewFromInt(500))
	ledger.SeedWallet(store, "acct-1", ledger.WalletData, decimal.NewFromInt(10))

	decision, err := gate.Check(ctx, "acct-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !decision.Eligible {
		t.Fatalf("only both-sufficient accounts are ineligible: %+v", decision)
	}
}

func TestCheckThresholdBoundary(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()
	store.EnsureAccount(ctx, "acct-1")
	// Exactly at both thresholds counts as sufficient.
	ledger.SeedWallet(store, "acct-1", ledger.WalletAirtime, decimal.NewFromInt(100))
	ledger.SeedWallet(store, "acct-1", ledger.WalletData, decimal.NewFromInt(1000))

	decision, err := gate.Check(ctx, "acct-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Eligible {
		t.Fatalf("account at both thresholds should be ineligible: %+v", decision)
	}
}

func TestCheckUnknownAccount(t *testing.T) {
	gate, _ := newTestGate(t)
	if _, err := gate.Check(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected error for unknown account")
	}
}
