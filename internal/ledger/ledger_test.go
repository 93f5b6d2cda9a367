package ledger

import (
	"context"
	"testing"
)

func TestLedgerIDFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LedgerIDFromContext(ctx, "default"); got != "default" {
		t.Errorf("got %q, want default", got)
	}

	ctx = WithLedgerID(ctx, "user-sheet")
	if got := LedgerIDFromContext(ctx, "default"); got != "user-sheet" {
		t.Errorf("got %q, want user-sheet", got)
	}

	if got := LedgerIDFromContext(WithLedgerID(context.Background(), ""), "default"); got != "default" {
		t.Errorf("empty id should keep fallback, got %q", got)
	}
}
