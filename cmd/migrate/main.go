package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dvloznov/voice-ledger/internal/bootstrap"
	"github.com/dvloznov/voice-ledger/internal/config"
	bqledger "github.com/dvloznov/voice-ledger/internal/ledger/bigquery"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

var (
	projectID       = flag.String("project", "", "GCP project ID (defaults to GCP_PROJECT)")
	datasetID       = flag.String("dataset", "", "BigQuery dataset ID (defaults to BQ_DATASET)")
	expensesTable   = flag.String("expenses-table", "", "Expenses table (defaults to BQ_EXPENSES_TABLE)")
	categoriesTable = flag.String("categories-table", "", "Categories table (defaults to BQ_CATEGORIES_TABLE)")
	appliedBy       = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir   = flag.String("migrations", "", "Directory of migration files (defaults to the embedded set)")
	list            = flag.Bool("list", false, "Print the migrations with placeholders resolved and exit")
)

func main() {
	flag.Parse()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		// Only the BigQuery settings matter here.
		log.Debug().Err(err).Msg("Configuration incomplete")
	}
	opts := resolveOptions(bootstrap.BigQueryOptions(cfg))

	fsys := migrationsFS(*migrationsDir)

	if *list {
		migrations, err := bqledger.ParseMigrations(fsys, opts.Vars())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read migrations")
		}
		for _, m := range migrations {
			fmt.Printf("-- %s (sha256 %s)\n%s\n\n", m.Filename, m.Checksum[:12], m.SQL)
		}
		return
	}

	if opts.ProjectID == "" {
		log.Fatal().Msg("Error: -project flag or GCP_PROJECT is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := bqledger.NewRepository(ctx, opts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	log.Info().Str("project", opts.ProjectID).Str("dataset", opts.Dataset).Msg("Connected to BigQuery")

	applied, err := repo.NewMigrator(*appliedBy).Run(ctx, fsys)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if applied == 0 {
		fmt.Println("No new migrations to apply. Dataset is up to date.")
	} else {
		fmt.Printf("Successfully applied %d migration(s).\n", applied)
	}
}

// resolveOptions lets flags override the configured tables.
func resolveOptions(opts bqledger.Options) bqledger.Options {
	if *projectID != "" {
		opts.ProjectID = *projectID
	}
	if *datasetID != "" {
		opts.Dataset = *datasetID
	}
	if *expensesTable != "" {
		opts.ExpensesTable = *expensesTable
	}
	if *categoriesTable != "" {
		opts.CategoriesTable = *categoriesTable
	}
	return opts
}

func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return bqledger.Migrations()
	}
	return os.DirFS(dir)
}
