package recorder

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder persists settlement entries in PostgreSQL. The share
// breakdown is stored as JSONB; reporting jobs read it downstream.
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder constructs a Postgres-backed recorder.
func NewPostgresRecorder(db *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

type storedShare struct {
	Party  string `json:"party"`
	Amount string `json:"amount"`
}

// Record inserts the settlement entry.
func (r *PostgresRecorder) Record(ctx context.Context, entry Entry) error {
	shares := make([]storedShare, 0, len(entry.Shares))
	for _, s := range entry.Shares {
		shares = append(shares, storedShare{Party: string(s.Party), Amount: s.Amount.String()})
	}
	payload, err := json.Marshal(shares)
	if err != nil {
		return err
	}

	const insert = `INSERT INTO settlement_entries
        (id, client_tx_id, purchaser_id, recipient_id, network, role, mode, face_value, markup, shares, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11)
        ON CONFLICT (client_tx_id) DO NOTHING`
	_, err = r.db.Exec(ctx, insert,
		entry.TransactionID, entry.ClientTxID, entry.PurchaserID, entry.RecipientID, entry.Network,
		string(entry.Role), string(entry.Mode), entry.FaceValue.String(), entry.Markup.String(),
		payload, entry.RecordedAt)
	return err
}
