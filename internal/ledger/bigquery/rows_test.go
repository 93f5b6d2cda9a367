package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

func TestExpenseRowRoundTrip(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	rec := domain.FinalizedExpense{
		ID:               "e1",
		Timestamp:        time.Date(2026, 5, 1, 22, 30, 0, 0, loc),
		Item:             "Coxinha",
		Amount:           decimal.RequireFromString("8.50"),
		Category:         domain.CategoryPurchase,
		DisplayCategory:  domain.CategoryPurchase,
		PaymentMethod:    "Debit",
		PurchaseLocation: domain.LocationPhysicalStore,
		Recurrence:       domain.RecurrenceOneTime,
		StatusTag:        domain.StatusConfirmed,
	}
	now := time.Date(2026, 5, 2, 1, 31, 0, 0, time.UTC)

	row := NewExpenseRow("sheet-1", rec, now)

	if row.LedgerID != "sheet-1" || row.ExpenseID != "e1" {
		t.Errorf("unexpected identifiers: %+v", row)
	}
	if row.ExpenseDate != (civil.Date{Year: 2026, Month: 5, Day: 1}) {
		t.Errorf("ExpenseDate = %v, want local calendar date", row.ExpenseDate)
	}
	if row.Amount.FloatString(2) != "8.50" {
		t.Errorf("Amount = %s", row.Amount.FloatString(2))
	}
	if !row.PurchaseLocation.Valid {
		t.Error("PurchaseLocation should be set")
	}

	back, err := row.Expense()
	if err != nil {
		t.Fatalf("Expense failed: %v", err)
	}
	if !back.Amount.Equal(rec.Amount) {
		t.Errorf("Amount = %s, want %s", back.Amount, rec.Amount)
	}
	if !back.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("Timestamp = %v", back.Timestamp)
	}
	if back.PurchaseLocation != rec.PurchaseLocation || back.StatusTag != rec.StatusTag {
		t.Errorf("unexpected record: %+v", back)
	}
}

func TestExpenseRow_EmptyOptionalFields(t *testing.T) {
	row := NewExpenseRow("l", domain.FinalizedExpense{ID: "e2", Amount: decimal.NewFromInt(3)}, time.Now())
	if row.PurchaseLocation.Valid || row.StatusTag.Valid {
		t.Error("empty strings should be stored as NULL")
	}

	row.Amount = nil
	if _, err := row.Expense(); err == nil {
		t.Error("expected error for missing amount")
	}
}
