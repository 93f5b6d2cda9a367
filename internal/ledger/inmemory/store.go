package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// Store is an in-memory ledger keyed by ledger ID. It is safe for concurrent use.
// Data is lost on restart; it backs the memory backend and tests.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string][]domain.FinalizedExpense
}

const defaultLedger = "default"

// NewStore creates an empty in-memory ledger.
func NewStore() *Store {
	return &Store{
		ledgers: make(map[string][]domain.FinalizedExpense),
	}
}

// Append implements ledger.Sink.
func (s *Store) Append(ctx context.Context, rec domain.FinalizedExpense) error {
	if rec.ID == "" {
		return fmt.Errorf("expense ID is required")
	}
	id := ledger.LedgerIDFromContext(ctx, defaultLedger)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.ledgers[id] {
		if existing.ID == rec.ID {
			return fmt.Errorf("expense %s already recorded", rec.ID)
		}
	}
	s.ledgers[id] = append(s.ledgers[id], rec)
	return nil
}

// ListExpenses implements ledger.Reader.
func (s *Store) ListExpenses(ctx context.Context) ([]domain.FinalizedExpense, error) {
	id := ledger.LedgerIDFromContext(ctx, defaultLedger)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FinalizedExpense, len(s.ledgers[id]))
	copy(out, s.ledgers[id])
	return out, nil
}

// Ensure Store implements ledger.Store.
var _ ledger.Store = (*Store)(nil)
