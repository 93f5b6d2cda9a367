package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/extractor"
)

func memoryConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{StatusTag: "Confirmed"},
		Ledger: config.LedgerConfig{Backend: config.BackendMemory},
	}
}

func TestBuildMemoryBackend(t *testing.T) {
	services, err := BuildWith(context.Background(), memoryConfig(), Backends{Extractor: &extractor.MockExtractor{}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.Manager == nil || services.Ledger == nil || services.Dashboard == nil {
		t.Fatalf("expected manager, ledger and dashboard: %+v", services)
	}
	if services.Mirror != nil || services.Queue != nil {
		t.Error("expected Notion mirror to be disabled")
	}
	if services.Tokens != nil || services.Auth != nil {
		t.Error("expected auth to be disabled")
	}
	if err := services.StartWorkers(context.Background()); err != nil {
		t.Errorf("StartWorkers without mirror: %v", err)
	}
}

func TestBuildWithNotionAndAuth(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notion = config.NotionConfig{Token: "secret_x", DatabaseID: "db-1"}
	cfg.Auth = config.AuthConfig{FirebaseURL: "https://example.firebaseio.com", JWTSecret: "s3cret", TokenTTL: time.Hour}

	services, err := BuildWith(context.Background(), cfg, Backends{Extractor: &extractor.MockExtractor{}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if services.Mirror == nil || services.Queue == nil {
		t.Fatal("expected Notion mirror and queue")
	}
	if services.Tokens == nil || services.Auth == nil {
		t.Fatal("expected tokens and login service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := services.StartWorkers(ctx); err != nil {
		t.Fatalf("StartWorkers: %v", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := services.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestBuildRequiresExtractorKey(t *testing.T) {
	if _, err := Build(context.Background(), memoryConfig(), zerolog.Nop()); err == nil {
		t.Fatal("expected error without GEMINI_API_KEY")
	}
}

func TestBuildUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Ledger.Backend = "postgres"

	if _, err := BuildWith(context.Background(), cfg, Backends{Extractor: &extractor.MockExtractor{}}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBigQueryOptions(t *testing.T) {
	cfg := config.Config{Ledger: config.LedgerConfig{
		ProjectID:       "proj",
		Dataset:         "finance",
		Table:           "expenses",
		CategoriesTable: "categories",
	}}

	opts := BigQueryOptions(cfg)
	if opts.ProjectID != "proj" || opts.Dataset != "finance" || opts.ExpensesTable != "expenses" || opts.CategoriesTable != "categories" {
		t.Errorf("options = %+v", opts)
	}
}

func TestOpenLedger(t *testing.T) {
	store, closeFn, err := OpenLedger(context.Background(), memoryConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer closeFn()

	expenses, err := store.ListExpenses(context.Background())
	if err != nil || len(expenses) != 0 {
		t.Errorf("ListExpenses = %v, %v", expenses, err)
	}
}
