package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/config"
	"github.com/airvend/airvend/internal/ledger"
)

// ErrNotEligible is returned by callers refusing a pool draw for an account
// the gate ruled ineligible. The gate itself only reports; it never mutates.
var ErrNotEligible = errors.New("account not eligible for pool allocation")

// SnapshotReader is the slice of the ledger the gate needs.
type SnapshotReader interface {
	Snapshot(ctx context.Context, accountID string) (ledger.BalanceSnapshot, error)
}

// Decision is the gate's verdict with a human-readable reason for audit logs.
type Decision struct {
	Eligible bool
	Reason   string
}

// Gate decides whether an account may draw from a shared pool. An account
// whose airtime and data balances both already meet the configured
// sufficiency thresholds has enough to transact and is refused further pool
// funds.
type Gate struct {
	store            SnapshotReader
	airtimeThreshold decimal.Decimal
	dataThreshold    decimal.Decimal
}

// NewGate builds a gate over the given ledger view and threshold rules.
func NewGate(store SnapshotReader, rules config.EligibilityRules) *Gate {
	return &Gate{
		store:            store,
		airtimeThreshold: decimal.NewFromFloat(rules.AirtimeThreshold),
		dataThreshold:    decimal.NewFromFloat(rules.DataThreshold),
	}
}

// Check consults the account's current balances. It must be called before
// every pool-funded operation; it never runs as a background sweep.
func (g *Gate) Check(ctx context.Context, accountID string) (Decision, error) {
	snapshot, err := g.store.Snapshot(ctx, accountID)
	if err != nil {
		return Decision{}, err
	}

	airtime := snapshot.Wallets[ledger.WalletAirtime].Balance
	data := snapshot.Wallets[ledger.WalletData].Balance

	if airtime.GreaterThanOrEqual(g.airtimeThreshold) && data.GreaterThanOrEqual(g.dataThreshold) {
		return Decision{
			Eligible: false,
			Reason: fmt.Sprintf("airtime %s and data %s already meet sufficiency thresholds (%s/%s)",
				airtime, data, g.airtimeThreshold, g.dataThreshold),
		}, nil
	}

	return Decision{Eligible: true, Reason: "balances below sufficiency thresholds"}, nil
}
