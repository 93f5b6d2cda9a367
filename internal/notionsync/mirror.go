package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

// queryPageSize is the Notion maximum page size.
const queryPageSize = 100

// Mirror writes expenses to one Notion database, keyed by expense ID.
type Mirror struct {
	svc        NotionService
	databaseID string
	log        zerolog.Logger
}

// NewMirror creates a mirror for databaseID.
func NewMirror(svc NotionService, databaseID string, log zerolog.Logger) *Mirror {
	return &Mirror{svc: svc, databaseID: databaseID, log: log}
}

// MirrorExpense creates the page for rec, or updates it when a page with the
// same expense ID already exists. It returns the page ID and whether it was created.
func (m *Mirror) MirrorExpense(ctx context.Context, rec domain.FinalizedExpense, ledgerID string) (string, bool, error) {
	if rec.ID == "" {
		return "", false, fmt.Errorf("MirrorExpense: expense has no ID")
	}

	props := ExpenseToNotionProperties(rec, ledgerID)

	resp, err := m.svc.QueryDatabase(ctx, m.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: &notionapi.PropertyFilter{
			Property: PropExpenseID,
			RichText: &notionapi.TextFilterCondition{Equals: rec.ID},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", false, fmt.Errorf("MirrorExpense: looking up expense: %w", err)
	}

	if len(resp.Results) > 0 {
		pageID := string(resp.Results[0].ID)
		if _, err := m.svc.UpdatePage(ctx, pageID, props); err != nil {
			return "", false, fmt.Errorf("MirrorExpense: %w", err)
		}
		m.log.Info().Str("expense_id", rec.ID).Str("page_id", pageID).Msg("Updated Notion page")
		return pageID, false, nil
	}

	page, err := m.svc.CreatePage(ctx, m.databaseID, props)
	if err != nil {
		return "", false, fmt.Errorf("MirrorExpense: %w", err)
	}
	m.log.Info().Str("expense_id", rec.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
	return string(page.ID), true, nil
}

// Handler returns a job handler that mirrors MirrorExpenseJob payloads.
func (m *Mirror) Handler() jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		mj, ok := job.(*jobs.MirrorExpenseJob)
		if !ok {
			return fmt.Errorf("unsupported job type %s", job.GetType())
		}
		_, _, err := m.MirrorExpense(ctx, mj.Expense, mj.LedgerID)
		return err
	}
}

// SyncResult counts what a full sync did.
type SyncResult struct {
	Created  int
	Skipped  int
	Archived int
	Failed   int
}

// SyncOptions controls SyncExpenses.
type SyncOptions struct {
	// Since excludes expenses recorded before it. Zero means everything.
	Since time.Time
	// Prune archives pages whose expense ID is no longer in the ledger.
	Prune  bool
	DryRun bool
}

// SyncExpenses reconciles the Notion database with the whole ledger. Pages that
// already carry an expense ID are left alone; per-expense failures are logged
// and counted without aborting the sync.
func (m *Mirror) SyncExpenses(ctx context.Context, reader ledger.Reader, opts SyncOptions) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var result SyncResult

	expenses, err := reader.ListExpenses(ctx)
	if err != nil {
		return result, fmt.Errorf("SyncExpenses: listing expenses: %w", err)
	}

	pages, err := m.queryAllPages(ctx)
	if err != nil {
		return result, fmt.Errorf("SyncExpenses: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := ExpenseIDFromPage(page); id != "" {
			existing[id] = true
		}
	}

	ledgerID := ledger.LedgerIDFromContext(ctx, "")
	valid := make(map[string]bool, len(expenses))
	for _, rec := range expenses {
		if rec.ID == "" {
			continue
		}
		valid[rec.ID] = true

		if !opts.Since.IsZero() && rec.Timestamp.Before(opts.Since) {
			continue
		}
		if existing[rec.ID] {
			result.Skipped++
			continue
		}
		if opts.DryRun {
			log.Info().Str("expense_id", rec.ID).Msg("[DRY RUN] Would create Notion page")
			result.Created++
			continue
		}

		if _, err := m.svc.CreatePage(ctx, m.databaseID, ExpenseToNotionProperties(rec, ledgerID)); err != nil {
			log.Warn().Err(err).Str("expense_id", rec.ID).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		result.Created++
	}

	if opts.Prune {
		for _, page := range pages {
			id := ExpenseIDFromPage(page)
			if id == "" || valid[id] {
				continue
			}
			if opts.DryRun {
				log.Info().Str("expense_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
				result.Archived++
				continue
			}
			if err := m.svc.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
				result.Failed++
				continue
			}
			result.Archived++
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Bool("dry_run", opts.DryRun).
		Msg("Expense sync completed")

	return result, nil
}

// queryAllPages pages through the whole database.
func (m *Mirror) queryAllPages(ctx context.Context) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := m.svc.QueryDatabase(ctx, m.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return all, nil
}
