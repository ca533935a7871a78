package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/config"
)

// bpsDenominator is the scaling factor for basis-point share math.
const bpsDenominator = 10_000

type ruleKey struct {
	role Role
	mode Mode
}

type shareRule struct {
	party Party
	bps   int64
}

// Calculator splits a transaction's markup between settlement parties
// according to the configured (role, mode) percentage table. It is pure and
// safe for concurrent use; all mutation is left to the ledger.
type Calculator struct {
	rules     map[ruleKey][]shareRule
	precision int32
}

// NewCalculator validates and compiles the configured settlement rows.
// A row whose shares do not sum to exactly 10000 basis points, or that names
// an unknown role, mode, or party, is rejected here so a bad table can never
// produce a partial settlement at transaction time.
func NewCalculator(rules config.SettlementRules) (*Calculator, error) {
	if len(rules.Rows) == 0 {
		return nil, fmt.Errorf("settlement table is empty")
	}

	compiled := make(map[ruleKey][]shareRule, len(rules.Rows))
	for _, row := range rules.Rows {
		role := Role(row.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("settlement row: unknown role %q", row.Role)
		}
		mode := Mode(row.Mode)
		if !mode.Valid() {
			return nil, fmt.Errorf("settlement row: unknown mode %q", row.Mode)
		}
		key := ruleKey{role: role, mode: mode}
		if _, dup := compiled[key]; dup {
			return nil, fmt.Errorf("settlement row (%s, %s) defined twice", role, mode)
		}
		if len(row.Shares) == 0 {
			return nil, fmt.Errorf("settlement row (%s, %s) has no shares", role, mode)
		}

		var totalBps int64
		shares := make([]shareRule, 0, len(row.Shares))
		for _, s := range row.Shares {
			if !validParty(Party(s.Party)) {
				return nil, fmt.Errorf("settlement row (%s, %s): unknown party %q", role, mode, s.Party)
			}
			if s.Bps <= 0 {
				return nil, fmt.Errorf("settlement row (%s, %s): share for %s must be positive", role, mode, s.Party)
			}
			totalBps += s.Bps
			shares = append(shares, shareRule{party: Party(s.Party), bps: s.Bps})
		}
		if totalBps != bpsDenominator {
			return nil, fmt.Errorf("settlement row (%s, %s) shares sum to %d bps, want %d", role, mode, totalBps, bpsDenominator)
		}
		compiled[key] = shares
	}

	precision := rules.Precision
	if precision < 0 {
		return nil, fmt.Errorf("settlement precision must not be negative")
	}

	return &Calculator{rules: compiled, precision: precision}, nil
}

// Compute distributes markup across the parties configured for (role, mode).
// Each share is rounded down to the configured precision and the remainder is
// assigned to the largest share, so the returned shares sum exactly to markup.
func (c *Calculator) Compute(markup decimal.Decimal, role Role, mode Mode) (Result, error) {
	if markup.IsNegative() {
		return Result{}, ErrNegativeMarkup
	}

	rules, ok := c.rules[ruleKey{role: role, mode: mode}]
	if !ok {
		return Result{}, fmt.Errorf("%w: role=%s mode=%s", ErrUnmappedContext, role, mode)
	}

	denominator := decimal.NewFromInt(bpsDenominator)
	shares := make([]Share, len(rules))
	allocated := decimal.Zero
	largest := 0
	for i, rule := range rules {
		amount := markup.Mul(decimal.NewFromInt(rule.bps)).Div(denominator).RoundDown(c.precision)
		shares[i] = Share{Party: rule.party, Amount: amount}
		allocated = allocated.Add(amount)
		if rule.bps > rules[largest].bps {
			largest = i
		}
	}

	// Rounding remainder goes to the largest share so nothing leaks.
	remainder := markup.Sub(allocated)
	if remainder.IsPositive() {
		shares[largest].Amount = shares[largest].Amount.Add(remainder)
	}

	return Result{Markup: markup, Shares: shares}, nil
}

func validParty(p Party) bool {
	switch p {
	case PartyCustomer, PartyVendor, PartyAdmin, PartyRecipient, PartyPlatform, PartyEscrow:
		return true
	}
	return false
}
