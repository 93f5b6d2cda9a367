package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/voice-ledger/internal/bootstrap"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/notionsync"
)

func main() {
	// Parse CLI flags
	sinceStr := flag.String("since", "", "Only sync expenses recorded on or after this date (YYYY-MM-DD)")
	ledgerID := flag.String("ledger-id", "", "Ledger to sync (spreadsheet ID or BigQuery ledger ID); defaults to the configured one")
	notionToken := flag.String("notion-token", "", "Notion API token (defaults to NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (defaults to NOTION_EXPENSES_DB_ID)")
	prune := flag.Bool("prune", false, "Archive pages whose expense no longer exists in the ledger")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.Load()

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.Server.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if *notionToken == "" {
		*notionToken = cfg.Notion.Token
	}
	if *notionDBID == "" {
		*notionDBID = cfg.Notion.DatabaseID
	}
	if *notionToken == "" || *notionDBID == "" {
		log.Fatal().Msg("Error: a Notion token and database ID are required")
	}

	var opts notionsync.SyncOptions
	opts.Prune = *prune
	opts.DryRun = *dryRun
	if *sinceStr != "" {
		opts.Since, err = time.ParseInLocation("2006-01-02", *sinceStr, time.Local)
		if err != nil {
			log.Fatal().Err(err).Str("since", *sinceStr).Msg("Error: invalid since format, expected YYYY-MM-DD")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	ctx = logger.WithContext(ctx, log)
	if *ledgerID != "" {
		ctx = ledger.WithLedgerID(ctx, *ledgerID)
	}

	log.Info().
		Str("since", *sinceStr).
		Str("ledger_id", *ledgerID).
		Bool("prune", *prune).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	store, closeLedger, err := bootstrap.OpenLedger(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer closeLedger()

	mirror := notionsync.NewMirror(notionsync.NewNotionClient(*notionToken), *notionDBID, log)

	result, err := mirror.SyncExpenses(ctx, store, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d skipped, %d archived, %d failed.\n",
		result.Created, result.Skipped, result.Archived, result.Failed)
}
