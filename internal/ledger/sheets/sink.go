// Package sheets stores the expense ledger in a Google Sheets spreadsheet, one row per expense.
package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/dialogue"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

const (
	// TimestampLayout is the layout of the timestamp column.
	TimestampLayout = "02/01/2006 15:04:05"

	appendRange = "A1"
	readRange   = "A2:I"
)

// Header is the first row of a ledger spreadsheet.
var Header = []interface{}{
	"Timestamp", "Item", "Amount", "Category", "Payment Method",
	"Purchase Location", "Recurrence", "Status", "Expense ID",
}

// Ledger appends expenses to a spreadsheet and reads them back for the dashboard.
// The spreadsheet is taken from the context (ledger.WithLedgerID) or falls back
// to the default one.
type Ledger struct {
	api           ValuesAPI
	spreadsheetID string
	loc           *time.Location
	log           zerolog.Logger
}

// NewLedger creates a spreadsheet ledger. loc is the zone timestamps are written in;
// nil means time.Local.
func NewLedger(api ValuesAPI, defaultSpreadsheetID string, loc *time.Location, log zerolog.Logger) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{
		api:           api,
		spreadsheetID: defaultSpreadsheetID,
		loc:           loc,
		log:           log,
	}
}

// Append implements ledger.Sink.
func (l *Ledger) Append(ctx context.Context, rec domain.FinalizedExpense) error {
	id := ledger.LedgerIDFromContext(ctx, l.spreadsheetID)
	if id == "" {
		return fmt.Errorf("no spreadsheet configured for this ledger")
	}

	if err := l.api.AppendRow(ctx, id, appendRange, ToRow(rec, l.loc)); err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	l.log.Info().
		Str("spreadsheet_id", id).
		Str("expense_id", rec.ID).
		Str("item", rec.Item).
		Str("amount", rec.Amount.StringFixed(2)).
		Msg("Expense appended to spreadsheet")
	return nil
}

// ListExpenses implements ledger.Reader. Rows whose amount cannot be read are skipped.
func (l *Ledger) ListExpenses(ctx context.Context) ([]domain.FinalizedExpense, error) {
	id := ledger.LedgerIDFromContext(ctx, l.spreadsheetID)
	if id == "" {
		return nil, fmt.Errorf("no spreadsheet configured for this ledger")
	}

	rows, err := l.api.ReadRows(ctx, id, readRange)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: %w", err)
	}

	out := make([]domain.FinalizedExpense, 0, len(rows))
	for i, row := range rows {
		rec, err := FromRow(row, l.loc)
		if err != nil {
			l.log.Warn().Err(err).Int("row", i+2).Str("spreadsheet_id", id).Msg("Skipping unreadable ledger row")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// CreateLedger creates a new spreadsheet with the ledger header and returns its ID.
func (l *Ledger) CreateLedger(ctx context.Context, title string) (string, error) {
	id, err := l.api.CreateSpreadsheet(ctx, title, Header)
	if err != nil {
		return "", fmt.Errorf("CreateLedger: %w", err)
	}
	l.log.Info().Str("spreadsheet_id", id).Str("title", title).Msg("Created ledger spreadsheet")
	return id, nil
}

// ToRow renders an expense in column order. The category column holds the display category.
func ToRow(rec domain.FinalizedExpense, loc *time.Location) []interface{} {
	return []interface{}{
		rec.Timestamp.In(loc).Format(TimestampLayout),
		rec.Item,
		rec.Amount.InexactFloat64(),
		rec.DisplayCategory,
		rec.PaymentMethod,
		rec.PurchaseLocation,
		rec.Recurrence,
		rec.StatusTag,
		rec.ID,
	}
}

// FromRow parses a ledger row. Missing trailing cells are treated as empty.
func FromRow(row []interface{}, loc *time.Location) (domain.FinalizedExpense, error) {
	cell := func(i int) interface{} {
		if i < len(row) {
			return row[i]
		}
		return nil
	}
	text := func(i int) string {
		if v := cell(i); v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	amount, err := cellAmount(cell(2))
	if err != nil {
		return domain.FinalizedExpense{}, err
	}

	rec := domain.FinalizedExpense{
		Item:             text(1),
		Amount:           amount,
		DisplayCategory:  text(3),
		PaymentMethod:    text(4),
		PurchaseLocation: text(5),
		Recurrence:       text(6),
		StatusTag:        text(7),
		ID:               text(8),
	}
	rec.Category = rec.DisplayCategory
	if rec.DisplayCategory == domain.CategoryOnlinePurchase {
		rec.Category = domain.CategoryPurchase
	}

	if ts := text(0); ts != "" {
		if parsed, err := time.ParseInLocation(TimestampLayout, ts, loc); err == nil {
			rec.Timestamp = parsed
		}
	}
	return rec, nil
}

func cellAmount(v interface{}) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		if d, ok := dialogue.ParseAmount(x); ok {
			return d, nil
		}
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", x)
	case nil:
		return decimal.Decimal{}, fmt.Errorf("missing amount")
	}
	return decimal.Decimal{}, fmt.Errorf("invalid amount of type %T", v)
}

// Ensure Ledger implements ledger.Store.
var _ ledger.Store = (*Ledger)(nil)
