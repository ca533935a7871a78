package ledger

import "github.com/shopspring/decimal"

// SeedWallet is a test helper that sets a wallet balance directly when using
// the in-memory store, bypassing credit bookkeeping.
func SeedWallet(s Store, accountID, wallet string, balance decimal.Decimal) {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	acc, exists := mem.accounts[accountID]
	if !exists {
		acc = &accountState{wallets: make(map[string]*walletState)}
		mem.accounts[accountID] = acc
	}
	mem.mu.Unlock()

	acc.mu.Lock()
	defer acc.mu.Unlock()
	w := acc.wallet(wallet)
	w.balance = balance
	if w.lifetimeEarned.LessThan(balance) {
		w.lifetimeEarned = balance
	}
}
