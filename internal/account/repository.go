package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airvend/airvend/internal/settlement"
)

// ErrNotFound indicates no account matches the lookup.
var ErrNotFound = errors.New("account not found")

// Repository persists account metadata.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	FindByID(ctx context.Context, id string) (Account, error)
	FindByMSISDN(ctx context.Context, msisdn string) (Account, error)
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (id, msisdn, role, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`, acct.ID, acct.MSISDN, string(acct.Role), acct.Status, acct.CreatedAt.UTC())
	return err
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, msisdn, role, status, created_at
        FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// FindByMSISDN fetches an account by subscriber number.
func (r *PostgresRepository) FindByMSISDN(ctx context.Context, msisdn string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, msisdn, role, status, created_at
        FROM accounts WHERE msisdn = $1`, msisdn)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	var role string
	var createdAt time.Time
	if err := row.Scan(&acct.ID, &acct.MSISDN, &role, &acct.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acct.Role = settlement.Role(role)
	acct.CreatedAt = createdAt.UTC()
	return acct, nil
}
