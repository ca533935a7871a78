package account

import (
	"time"

	"github.com/airvend/airvend/internal/settlement"
)

const (
	statusActive = "active"
)

// Account is an entity that can hold balances and receive settlement shares.
// Accounts are created at registration and only ever deactivated, never
// deleted; every balance mutation goes through the ledger.
type Account struct {
	ID        string
	MSISDN    string
	Role      settlement.Role
	Status    string
	CreatedAt time.Time
}
