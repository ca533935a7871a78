package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists the ledger in PostgreSQL. Row locks via
// SELECT ... FOR UPDATE give each operation the per-account/per-pool mutual
// exclusion the in-memory store gets from its keyed mutexes.
type PostgresStore struct {
	db     *pgxpool.Pool
	policy Policy
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool, policy Policy) *PostgresStore {
	return &PostgresStore{db: db, policy: policy}
}

// EnsureAccount guarantees a ledger account row exists for the identifier.
func (s *PostgresStore) EnsureAccount(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO ledger_accounts (id) VALUES ($1)
        ON CONFLICT (id) DO NOTHING`, accountID)
	return err
}

// EnsurePool guarantees a pool row exists for the identifier.
func (s *PostgresStore) EnsurePool(ctx context.Context, poolID string) error {
	if poolID == "" {
		return fmt.Errorf("pool id is required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO pools (id, total_available, total_top_ups)
        VALUES ($1, 0, 0) ON CONFLICT (id) DO NOTHING`, poolID)
	return err
}

// Credit increases the wallet balance and lifetime earnings atomically.
func (s *PostgresStore) Credit(ctx context.Context, accountID, wallet string, amount decimal.Decimal) (WalletState, error) {
	if !amount.IsPositive() {
		return WalletState{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WalletState{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockAccount(ctx, tx, accountID); err != nil {
		return WalletState{}, err
	}
	if err := ensureWalletRow(ctx, tx, accountID, wallet); err != nil {
		return WalletState{}, err
	}

	const update = `UPDATE wallets
        SET balance = balance + $3::numeric, lifetime_earned = lifetime_earned + $3::numeric
        WHERE account_id = $1 AND name = $2`
	if _, err := tx.Exec(ctx, update, accountID, wallet, amount.String()); err != nil {
		return WalletState{}, err
	}

	state, err := walletStateInTx(ctx, tx, accountID, wallet, time.Now().UTC())
	if err != nil {
		return WalletState{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return WalletState{}, err
	}
	return state, nil
}

// Debit decreases the wallet balance, failing whole when funds are short.
func (s *PostgresStore) Debit(ctx context.Context, accountID, wallet string, amount decimal.Decimal) (WalletState, error) {
	if !amount.IsPositive() {
		return WalletState{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WalletState{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockAccount(ctx, tx, accountID); err != nil {
		return WalletState{}, err
	}
	if err := ensureWalletRow(ctx, tx, accountID, wallet); err != nil {
		return WalletState{}, err
	}

	balance, err := walletBalanceInTx(ctx, tx, accountID, wallet)
	if err != nil {
		return WalletState{}, err
	}
	if balance.LessThan(amount) {
		return WalletState{}, ErrInsufficientBalance
	}

	const update = `UPDATE wallets SET balance = balance - $3::numeric
        WHERE account_id = $1 AND name = $2`
	if _, err := tx.Exec(ctx, update, accountID, wallet, amount.String()); err != nil {
		return WalletState{}, err
	}

	state, err := walletStateInTx(ctx, tx, accountID, wallet, time.Now().UTC())
	if err != nil {
		return WalletState{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return WalletState{}, err
	}
	return state, nil
}

// AllocateFromPool atomically moves value from a pool into a wallet, enforcing
// the pool balance check and the allocation safety cap under row locks.
func (s *PostgresStore) AllocateFromPool(ctx context.Context, poolID, accountID, wallet, allocationID string, amount decimal.Decimal) (Allocation, error) {
	if !amount.IsPositive() {
		return Allocation{}, ErrInvalidAmount
	}
	if allocationID == "" {
		return Allocation{}, fmt.Errorf("allocation id is required")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Allocation{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Pool first, account second: same lock order everywhere.
	poolAvailable, err := lockPool(ctx, tx, poolID)
	if err != nil {
		return Allocation{}, err
	}
	if err := lockAccount(ctx, tx, accountID); err != nil {
		return Allocation{}, err
	}

	if existing, err := allocationByID(ctx, tx, allocationID); err == nil {
		return existing, ErrDuplicateAllocation
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Allocation{}, err
	}

	if poolAvailable.LessThan(amount) {
		return Allocation{}, ErrPoolExhausted
	}

	now := time.Now().UTC()
	if err := ensureWalletRow(ctx, tx, accountID, wallet); err != nil {
		return Allocation{}, err
	}
	allocated, err := walletAllocatedInTx(ctx, tx, accountID, wallet, now)
	if err != nil {
		return Allocation{}, err
	}
	unallocated := s.policy.capacityFor(wallet).Sub(allocated)
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

	if _, err := tx.Exec(ctx, `UPDATE pools SET total_available = total_available - $2::numeric
        WHERE id = $1`, poolID, amount.String()); err != nil {
		return Allocation{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets
        SET balance = balance + $3::numeric, lifetime_earned = lifetime_earned + $3::numeric
        WHERE account_id = $1 AND name = $2`, accountID, wallet, amount.String()); err != nil {
		return Allocation{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO allocations (id, pool_id, account_id, wallet, amount, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
		alloc.ID, alloc.PoolID, alloc.AccountID, alloc.Wallet, alloc.Amount.String(), alloc.CreatedAt, alloc.ExpiresAt); err != nil {
		return Allocation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Allocation{}, err
	}
	return alloc, nil
}

// TopUpPool records an administrative top-up and returns the new pool balance.
func (s *PostgresStore) TopUpPool(ctx context.Context, poolID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var raw string
	const update = `UPDATE pools
        SET total_available = total_available + $2::numeric, total_top_ups = total_top_ups + $2::numeric
        WHERE id = $1 RETURNING total_available::text`
	if err := s.db.QueryRow(ctx, update, poolID, amount.String()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// PoolBalance returns the pool's available funds.
func (s *PostgresStore) PoolBalance(ctx context.Context, poolID string) (decimal.Decimal, error) {
	var raw string
	if err := s.db.QueryRow(ctx, `SELECT total_available::text FROM pools WHERE id = $1`, poolID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// Snapshot reads every wallet of the account under its row lock so the view
// never observes a partially-applied allocation.
func (s *PostgresStore) Snapshot(ctx context.Context, accountID string) (BalanceSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return BalanceSnapshot{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockAccount(ctx, tx, accountID); err != nil {
		return BalanceSnapshot{}, err
	}

	now := time.Now().UTC()
	rows, err := tx.Query(ctx, `SELECT name FROM wallets WHERE account_id = $1`, accountID)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	names := make([]string, 0, 4)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return BalanceSnapshot{}, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return BalanceSnapshot{}, err
	}

	snapshot := BalanceSnapshot{
		AccountID: accountID,
		Wallets:   make(map[string]WalletState, len(names)),
		AsOf:      now,
	}
	for _, name := range names {
		state, err := walletStateInTx(ctx, tx, accountID, name, now)
		if err != nil {
			return BalanceSnapshot{}, err
		}
		snapshot.Wallets[name] = state
	}

	if err := tx.Commit(ctx); err != nil {
		return BalanceSnapshot{}, err
	}
	return snapshot, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, accountID string) error {
	var id string
	if err := tx.QueryRow(ctx, `SELECT id FROM ledger_accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return err
	}
	return nil
}

func lockPool(ctx context.Context, tx pgx.Tx, poolID string) (decimal.Decimal, error) {
	var raw string
	if err := tx.QueryRow(ctx, `SELECT total_available::text FROM pools WHERE id = $1 FOR UPDATE`, poolID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func ensureWalletRow(ctx context.Context, tx pgx.Tx, accountID, wallet string) error {
	_, err := tx.Exec(ctx, `INSERT INTO wallets (account_id, name, balance, lifetime_earned)
        VALUES ($1, $2, 0, 0) ON CONFLICT (account_id, name) DO NOTHING`, accountID, wallet)
	return err
}

func walletBalanceInTx(ctx context.Context, tx pgx.Tx, accountID, wallet string) (decimal.Decimal, error) {
	var raw string
	const query = `SELECT balance::text FROM wallets WHERE account_id = $1 AND name = $2`
	if err := tx.QueryRow(ctx, query, accountID, wallet).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func walletAllocatedInTx(ctx context.Context, tx pgx.Tx, accountID, wallet string, at time.Time) (decimal.Decimal, error) {
	var raw string
	const query = `SELECT COALESCE(SUM(amount), 0)::text FROM allocations
        WHERE account_id = $1 AND wallet = $2 AND expires_at > $3`
	if err := tx.QueryRow(ctx, query, accountID, wallet, at).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func walletStateInTx(ctx context.Context, tx pgx.Tx, accountID, wallet string, at time.Time) (WalletState, error) {
	var balanceRaw, earnedRaw string
	const query = `SELECT balance::text, lifetime_earned::text FROM wallets
        WHERE account_id = $1 AND name = $2`
	if err := tx.QueryRow(ctx, query, accountID, wallet).Scan(&balanceRaw, &earnedRaw); err != nil {
		return WalletState{}, err
	}
	balance, err := decimal.NewFromString(balanceRaw)
	if err != nil {
		return WalletState{}, err
	}
	earned, err := decimal.NewFromString(earnedRaw)
	if err != nil {
		return WalletState{}, err
	}
	allocated, err := walletAllocatedInTx(ctx, tx, accountID, wallet, at)
	if err != nil {
		return WalletState{}, err
	}
	available := balance.Sub(allocated)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return WalletState{
		Name:           wallet,
		Balance:        balance,
		Allocated:      allocated,
		Available:      available,
		LifetimeEarned: earned,
	}, nil
}

func allocationByID(ctx context.Context, tx pgx.Tx, allocationID string) (Allocation, error) {
	var alloc Allocation
	var amountRaw string
	const query = `SELECT id, pool_id, account_id, wallet, amount::text, created_at, expires_at
        FROM allocations WHERE id = $1`
	if err := tx.QueryRow(ctx, query, allocationID).Scan(
		&alloc.ID, &alloc.PoolID, &alloc.AccountID, &alloc.Wallet, &amountRaw, &alloc.CreatedAt, &alloc.ExpiresAt,
	); err != nil {
		return Allocation{}, err
	}
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return Allocation{}, err
	}
	alloc.Amount = amount
	return alloc, nil
}
