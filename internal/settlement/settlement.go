package settlement

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnmappedContext indicates no settlement row is configured for the
	// requested (role, mode) combination. This is a configuration defect:
	// the enclosing transaction must abort, never partially settle.
	ErrUnmappedContext = errors.New("no settlement rule for purchase context")

	// ErrNegativeMarkup rejects settlement of a negative markup amount.
	ErrNegativeMarkup = errors.New("markup must not be negative")
)

// Role is the closed set of purchaser roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Mode is the closed set of purchase modes.
type Mode string

const (
	ModeSelf             Mode = "self"
	ModeGiftRegistered   Mode = "gift_registered"
	ModeGiftUnregistered Mode = "gift_unregistered"
)

// Valid reports whether the mode is one of the known values.
func (m Mode) Valid() bool {
	switch m {
	case ModeSelf, ModeGiftRegistered, ModeGiftUnregistered:
		return true
	}
	return false
}

// Party identifies a settlement beneficiary.
type Party string

const (
	PartyCustomer  Party = "customer"
	PartyVendor    Party = "vendor"
	PartyAdmin     Party = "admin"
	PartyRecipient Party = "recipient"
	PartyPlatform  Party = "platform"
	PartyEscrow    Party = "escrow"
)

// Share is one party's portion of a settled markup.
type Share struct {
	Party  Party
	Amount decimal.Decimal
}

// Result is the full distribution of one transaction's markup. Shares always
// sum exactly to the input markup; the rounding remainder is folded into the
// largest share.
type Result struct {
	Markup decimal.Decimal
	Shares []Share
}

// Total sums the share amounts. It exists for callers asserting the
// no-leakage invariant.
func (r Result) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Shares {
		total = total.Add(s.Amount)
	}
	return total
}
