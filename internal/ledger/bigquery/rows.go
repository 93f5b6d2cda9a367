package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// numericScale is the number of fractional digits of a BigQuery NUMERIC.
const numericScale = 9

type ExpenseRow struct {
	ExpenseID string `bigquery:"expense_id"` // REQUIRED
	LedgerID  string `bigquery:"ledger_id"`  // REQUIRED

	RecordedTS  time.Time  `bigquery:"recorded_ts"`  // REQUIRED
	ExpenseDate civil.Date `bigquery:"expense_date"` // REQUIRED, partition column

	Item   string   `bigquery:"item"`   // REQUIRED
	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Category        string `bigquery:"category"`         // REQUIRED
	DisplayCategory string `bigquery:"display_category"` // REQUIRED
	PaymentMethod   string `bigquery:"payment_method"`   // REQUIRED

	PurchaseLocation bigquery.NullString `bigquery:"purchase_location"` // NULLABLE
	Recurrence       bigquery.NullString `bigquery:"recurrence"`        // NULLABLE
	StatusTag        bigquery.NullString `bigquery:"status_tag"`        // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type CategoryRow struct {
	CategoryID string                 `bigquery:"category_id"` // REQUIRED
	Name       string                 `bigquery:"name"`        // REQUIRED
	IsActive   bigquery.NullBool      `bigquery:"is_active"`   // NULLABLE
	RetiredTS  bigquery.NullTimestamp `bigquery:"retired_ts"`  // NULLABLE
}

// NewExpenseRow converts a finalized expense into its warehouse row.
func NewExpenseRow(ledgerID string, rec domain.FinalizedExpense, now time.Time) *ExpenseRow {
	return &ExpenseRow{
		ExpenseID:        rec.ID,
		LedgerID:         ledgerID,
		RecordedTS:       rec.Timestamp.UTC(),
		ExpenseDate:      civil.DateOf(rec.Timestamp),
		Item:             rec.Item,
		Amount:           rec.Amount.Rat(),
		Category:         rec.Category,
		DisplayCategory:  rec.DisplayCategory,
		PaymentMethod:    rec.PaymentMethod,
		PurchaseLocation: nullString(rec.PurchaseLocation),
		Recurrence:       nullString(rec.Recurrence),
		StatusTag:        nullString(rec.StatusTag),
		CreatedTS:        now.UTC(),
	}
}

// Expense converts the row back into a finalized expense.
func (r *ExpenseRow) Expense() (domain.FinalizedExpense, error) {
	if r.Amount == nil {
		return domain.FinalizedExpense{}, fmt.Errorf("expense %s has no amount", r.ExpenseID)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(numericScale))
	if err != nil {
		return domain.FinalizedExpense{}, fmt.Errorf("expense %s: parsing amount: %w", r.ExpenseID, err)
	}

	return domain.FinalizedExpense{
		ID:               r.ExpenseID,
		Timestamp:        r.RecordedTS,
		Item:             r.Item,
		Amount:           amount,
		Category:         r.Category,
		DisplayCategory:  r.DisplayCategory,
		PaymentMethod:    r.PaymentMethod,
		PurchaseLocation: r.PurchaseLocation.StringVal,
		Recurrence:       r.Recurrence.StringVal,
		StatusTag:        r.StatusTag.StringVal,
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
