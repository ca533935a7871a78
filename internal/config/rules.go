package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Rules holds the externalized engine rule set: settlement percentage tables,
// the carrier prefix map, eligibility thresholds, and pool allocation policy.
// Everything here is data, never code; the engine packages validate and compile
// these rows at construction time.
type Rules struct {
	Settlement  SettlementRules  `toml:"settlement"`
	Network     NetworkRules     `toml:"network"`
	Eligibility EligibilityRules `toml:"eligibility"`
	Allocation  AllocationRules  `toml:"allocation"`
}

// SettlementRules drives the markup split. Shares are expressed in basis
// points and must sum to 10000 per row.
type SettlementRules struct {
	// Precision is the number of decimal places shares are rounded to.
	Precision int32           `toml:"precision"`
	Rows      []SettlementRow `toml:"rows"`
}

// SettlementRow maps one (role, mode) purchase context to its party shares.
type SettlementRow struct {
	Role   string      `toml:"role"`
	Mode   string      `toml:"mode"`
	Shares []ShareRule `toml:"shares"`
}

// ShareRule assigns a basis-point portion of the markup to a settlement party.
type ShareRule struct {
	Party string `toml:"party"`
	Bps   int64  `toml:"bps"`
}

// NetworkRules configures the numbering-plan classifier.
type NetworkRules struct {
	// CountryCode is the international dialing prefix without the plus sign.
	CountryCode string `toml:"country_code"`
	// TrunkPrefix is the domestic dialing prefix, a single leading zero in ZA.
	TrunkPrefix string `toml:"trunk_prefix"`
	// Prefixes maps a three-digit numbering-plan prefix to a carrier name.
	Prefixes map[string]string `toml:"prefixes"`
}

// EligibilityRules sets the sufficiency thresholds for pool draws. An account
// at or above both thresholds is refused further pool allocations.
type EligibilityRules struct {
	AirtimeThreshold float64 `toml:"airtime_threshold"`
	DataThreshold    float64 `toml:"data_threshold"`
}

// AllocationRules sets pool allocation policy.
type AllocationRules struct {
	// CapRatio bounds a single allocation to this share of the target
	// wallet's unallocated capacity.
	CapRatio float64 `toml:"cap_ratio"`
	// ExpiryHours is the lifetime of allocated value.
	ExpiryHours int `toml:"expiry_hours"`
	// WalletCapacity caps how much value each named wallet may hold from
	// pool allocations; DefaultCapacity applies to wallets not listed.
	WalletCapacity  map[string]float64 `toml:"wallet_capacity"`
	DefaultCapacity float64            `toml:"default_capacity"`
}

// DefaultRules returns the compiled-in rule set used when no RULES_PATH is
// configured. Values mirror the production defaults for the ZA numbering plan.
func DefaultRules() Rules {
	return Rules{
		Settlement: SettlementRules{
			Precision: 2,
			Rows: []SettlementRow{
				{Role: "vendor", Mode: "self", Shares: []ShareRule{
					{Party: "vendor", Bps: 7500},
					{Party: "admin", Bps: 1250},
					{Party: "platform", Bps: 1250},
				}},
				{Role: "admin", Mode: "self", Shares: []ShareRule{
					{Party: "admin", Bps: 7500},
					{Party: "platform", Bps: 2500},
				}},
				{Role: "customer", Mode: "self", Shares: []ShareRule{
					{Party: "customer", Bps: 5000},
					{Party: "admin", Bps: 5000},
				}},
				{Role: "customer", Mode: "gift_registered", Shares: []ShareRule{
					{Party: "customer", Bps: 5000},
					{Party: "recipient", Bps: 5000},
				}},
				{Role: "customer", Mode: "gift_unregistered", Shares: []ShareRule{
					{Party: "customer", Bps: 5000},
					{Party: "escrow", Bps: 5000},
				}},
			},
		},
		Network: NetworkRules{
			CountryCode: "27",
			TrunkPrefix: "0",
			Prefixes: map[string]string{
				"060": "MTN", "063": "MTN", "073": "MTN", "078": "MTN", "083": "MTN",
				"061": "CellC", "062": "CellC", "074": "CellC", "084": "CellC",
				"064": "Vodacom", "065": "Vodacom", "066": "Vodacom", "067": "Vodacom",
				"071": "Vodacom", "072": "Vodacom", "076": "Vodacom", "079": "Vodacom",
				"082": "Vodacom",
				"081": "TelkomMobile", "087": "TelkomMobile",
			},
		},
		Eligibility: EligibilityRules{
			AirtimeThreshold: 100,
			DataThreshold:    1000,
		},
		Allocation: AllocationRules{
			CapRatio:    0.9,
			ExpiryHours: 720,
			WalletCapacity: map[string]float64{
				"airtime": 1000,
				"data":    10000,
			},
			DefaultCapacity: 1000,
		},
	}
}

// LoadRules reads the rule set from the TOML file at path, falling back to
// DefaultRules when path is empty. Missing sections inherit defaults so a
// rules file may override just the table it cares about.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	if _, err := toml.DecodeFile(path, &rules); err != nil {
		return Rules{}, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	return rules, nil
}
