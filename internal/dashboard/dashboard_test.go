package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/ledger/inmemory"
)

func exp(id, category, amount string) domain.FinalizedExpense {
	return domain.FinalizedExpense{
		ID:              id,
		Item:            "item-" + id,
		Amount:          decimal.RequireFromString(amount),
		Category:        category,
		DisplayCategory: category,
	}
}

func TestSummarize(t *testing.T) {
	expenses := []domain.FinalizedExpense{
		exp("1", "Food", "10.10"),
		exp("2", "Purchase", "50"),
		exp("3", "Food", "0.20"),
		exp("4", "Online Purchase", "10.30"),
		exp("5", "Bills", "10.30"),
		exp("6", "Food", "20"),
		exp("7", "Transport", "5"),
	}

	s := Summarize(expenses, DefaultRecent)

	if !s.Total.Equal(decimal.RequireFromString("105.90")) {
		t.Errorf("Total = %s", s.Total)
	}
	if s.Count != 7 {
		t.Errorf("Count = %d", s.Count)
	}

	wantOrder := []string{"Purchase", "Food", "Bills", "Online Purchase", "Transport"}
	if len(s.ByCategory) != len(wantOrder) {
		t.Fatalf("got %d categories", len(s.ByCategory))
	}
	for i, name := range wantOrder {
		if s.ByCategory[i].Category != name {
			t.Errorf("category %d = %s, want %s", i, s.ByCategory[i].Category, name)
		}
	}
	if food := s.ByCategory[1]; !food.Total.Equal(decimal.RequireFromString("30.30")) || food.Count != 3 {
		t.Errorf("Food total = %s (%d entries)", food.Total, food.Count)
	}

	if len(s.Recent) != 5 || s.Recent[0].ID != "7" || s.Recent[4].ID != "3" {
		t.Errorf("unexpected recent entries: %+v", s.Recent)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 5)
	if !s.Total.IsZero() || s.Count != 0 || len(s.ByCategory) != 0 || len(s.Recent) != 0 {
		t.Errorf("unexpected empty summary: %+v", s)
	}
	if s.ByCategory == nil || s.Recent == nil {
		t.Error("slices should be non-nil so they encode as []")
	}
}

func TestSummarize_RecentBounds(t *testing.T) {
	expenses := []domain.FinalizedExpense{exp("1", "Food", "1"), exp("2", "Food", "2")}

	if got := Summarize(expenses, 10).Recent; len(got) != 2 {
		t.Errorf("recent should be capped at the ledger size, got %d", len(got))
	}
	if got := Summarize(expenses, -1).Recent; len(got) != 0 {
		t.Errorf("negative count should yield no entries, got %d", len(got))
	}
}

func TestSummarize_FallsBackToCategory(t *testing.T) {
	e := exp("1", "Food", "3")
	e.DisplayCategory = ""
	if got := Summarize([]domain.FinalizedExpense{e}, 1).ByCategory[0].Category; got != "Food" {
		t.Errorf("category = %q", got)
	}
}

type failingReader struct{}

func (failingReader) ListExpenses(ctx context.Context) ([]domain.FinalizedExpense, error) {
	return nil, errors.New("sheet unavailable")
}

func TestService_Summary(t *testing.T) {
	store := inmemory.NewStore()
	ctx := ledger.WithLedgerID(context.Background(), "sheet-a")
	_ = store.Append(ctx, exp("1", "Food", "4"))
	_ = store.Append(context.Background(), exp("2", "Food", "100"))

	s, err := NewService(store).Summary(ctx, 5)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !s.Total.Equal(decimal.NewFromInt(4)) {
		t.Errorf("summary should only cover the selected ledger, total = %s", s.Total)
	}

	if _, err := NewService(failingReader{}).Summary(ctx, 5); err == nil {
		t.Error("expected reader error")
	}
}
