package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/settlement"
)

// Entry is one settled transaction as handed to the persistence collaborator.
type Entry struct {
	TransactionID string
	ClientTxID    string
	PurchaserID   string
	RecipientID   string
	Network       string
	Role          settlement.Role
	Mode          settlement.Mode
	FaceValue     decimal.Decimal
	Markup        decimal.Decimal
	Shares        []settlement.Share
	RecordedAt    time.Time
}

// Recorder persists settlement outcomes. The engine only writes; querying and
// reporting belong to downstream systems.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// LoggerRecorder writes entries to the structured logger. It stands in for a
// real persistence backend in development mode.
type LoggerRecorder struct {
	logger *slog.Logger
}

// NewLoggerRecorder constructs a logging recorder.
func NewLoggerRecorder(logger *slog.Logger) *LoggerRecorder {
	return &LoggerRecorder{logger: logger}
}

// Record logs the settlement breakdown.
func (r *LoggerRecorder) Record(_ context.Context, entry Entry) error {
	if r == nil || r.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("transaction_id", entry.TransactionID),
		slog.String("client_tx_id", entry.ClientTxID),
		slog.String("purchaser_id", entry.PurchaserID),
		slog.String("role", string(entry.Role)),
		slog.String("mode", string(entry.Mode)),
		slog.String("markup", entry.Markup.String()),
	}
	for _, share := range entry.Shares {
		attrs = append(attrs, slog.String("share_"+string(share.Party), share.Amount.String()))
	}
	r.logger.Info("settlement recorded", attrs...)
	return nil
}

// MemoryRecorder accumulates entries in memory for tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryRecorder constructs an in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends the entry.
func (r *MemoryRecorder) Record(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *MemoryRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
