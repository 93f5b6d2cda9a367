// Package ledger defines the persistence boundary for finalized expenses.
package ledger

import (
	"context"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Sink appends finalized expenses to persistent storage.
// A nil error means the row was written; the error text is shown to the user otherwise.
type Sink interface {
	Append(ctx context.Context, rec domain.FinalizedExpense) error
}

// Reader lists the expenses stored in a ledger, oldest first.
type Reader interface {
	ListExpenses(ctx context.Context) ([]domain.FinalizedExpense, error)
}

// Store is a ledger that can be written and read.
type Store interface {
	Sink
	Reader
}

type contextKey string

const ledgerIDKey contextKey = "ledger_id"

// WithLedgerID routes ledger calls made with ctx to a specific ledger, such as a
// user's own spreadsheet.
func WithLedgerID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ledgerIDKey, id)
}

// LedgerIDFromContext returns the ledger ID set by WithLedgerID, or fallback.
func LedgerIDFromContext(ctx context.Context, fallback string) string {
	if id, ok := ctx.Value(ledgerIDKey).(string); ok && id != "" {
		return id
	}
	return fallback
}
