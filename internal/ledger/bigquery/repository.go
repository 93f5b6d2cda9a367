// Package bigquery stores the expense ledger in a BigQuery table and reads the
// category taxonomy from the same dataset.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// DefaultLedgerID is the ledger rows are written to when the context names none.
const DefaultLedgerID = "default"

// Options locates the ledger tables.
type Options struct {
	ProjectID       string
	Dataset         string
	ExpensesTable   string
	CategoriesTable string
}

// Repository is the BigQuery implementation of ledger.Store. It holds a shared
// client for all operations.
type Repository struct {
	client *bigquery.Client
	opts   Options
	schema bigquery.Schema
	now    func() time.Time
	log    zerolog.Logger
}

// NewRepository creates a repository with its own BigQuery client.
func NewRepository(ctx context.Context, opts Options, log zerolog.Logger) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, opts.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}

	schema, err := bigquery.InferSchema(ExpenseRow{})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("NewRepository: inferring expense schema: %w", err)
	}

	return &Repository{
		client: client,
		opts:   opts,
		schema: schema,
		now:    time.Now,
		log:    log,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Append inserts one expense. The expense ID doubles as the streaming insert ID
// so a retried insert is deduplicated by BigQuery.
func (r *Repository) Append(ctx context.Context, rec domain.FinalizedExpense) error {
	ledgerID := ledger.LedgerIDFromContext(ctx, DefaultLedgerID)
	row := NewExpenseRow(ledgerID, rec, r.now())

	inserter := r.client.DatasetInProject(r.opts.ProjectID, r.opts.Dataset).Table(r.opts.ExpensesTable).Inserter()
	saver := &bigquery.StructSaver{Schema: r.schema, InsertID: row.ExpenseID, Struct: row}
	if err := inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("Append: inserting expense: %w", err)
	}

	r.log.Info().
		Str("ledger_id", ledgerID).
		Str("expense_id", row.ExpenseID).
		Str("item", row.Item).
		Msg("Expense inserted into BigQuery")
	return nil
}

// ListExpenses returns the ledger's expenses ordered by recording time.
func (r *Repository) ListExpenses(ctx context.Context) ([]domain.FinalizedExpense, error) {
	ledgerID := ledger.LedgerIDFromContext(ctx, DefaultLedgerID)

	q := r.client.Query(fmt.Sprintf(`
		SELECT
		  expense_id,
		  ledger_id,
		  recorded_ts,
		  expense_date,
		  item,
		  amount,
		  category,
		  display_category,
		  payment_method,
		  purchase_location,
		  recurrence,
		  status_tag,
		  created_ts
		FROM %s
		WHERE ledger_id = @ledger_id
		ORDER BY recorded_ts
	`, r.tableRef(r.opts.ExpensesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ledger_id", Value: ledgerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: query read: %w", err)
	}

	var out []domain.FinalizedExpense
	for {
		var row ExpenseRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExpenses: iter next: %w", err)
		}

		rec, err := row.Expense()
		if err != nil {
			r.log.Warn().Err(err).Msg("Skipping unreadable expense row")
			continue
		}
		out = append(out, rec)
	}

	return out, nil
}

// ListActiveCategories returns all active categories ordered by name.
func (r *Repository) ListActiveCategories(ctx context.Context) ([]CategoryRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
		  category_id,
		  name,
		  is_active,
		  retired_ts
		FROM %s
		WHERE is_active = TRUE
		ORDER BY name
	`, r.tableRef(r.opts.CategoriesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCategories: query read: %w", err)
	}

	var rows []CategoryRow
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActiveCategories: iter next: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// CategoryNames returns the names of the active categories.
func (r *Repository) CategoryNames(ctx context.Context) ([]string, error) {
	rows, err := r.ListActiveCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	return names, nil
}

// CreateLedger allocates a new ledger ID. Ledgers share the expenses table, so
// nothing is written until the first expense arrives.
func (r *Repository) CreateLedger(ctx context.Context, title string) (string, error) {
	id := uuid.New().String()
	r.log.Info().Str("ledger_id", id).Str("title", title).Msg("Allocated BigQuery ledger")
	return id, nil
}

func (r *Repository) tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.opts.ProjectID, r.opts.Dataset, table)
}

// Ensure Repository implements ledger.Store.
var _ ledger.Store = (*Repository)(nil)
