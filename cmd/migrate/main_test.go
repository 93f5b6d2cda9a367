package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	bqledger "github.com/dvloznov/voice-ledger/internal/ledger/bigquery"
)

func TestEmbeddedMigrationsResolve(t *testing.T) {
	opts := bqledger.Options{ProjectID: "proj", Dataset: "finance", ExpensesTable: "expenses", CategoriesTable: "categories"}

	migrations, err := bqledger.ParseMigrations(migrationsFS(""), opts.Vars())
	if err != nil {
		t.Fatalf("ParseMigrations: %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("found %d embedded migrations, want at least 3", len(migrations))
	}

	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s has unresolved placeholders", m.Filename)
		}
		if !strings.Contains(m.SQL, "`proj.finance.") {
			t.Errorf("%s does not reference the dataset", m.Filename)
		}
	}
}

func TestMigrationsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0001_first.sql":  "SELECT 1;",
		"0002_second.sql": "SELECT 2;",
		"README.md":       "not a migration",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	migrations, err := bqledger.ParseMigrations(migrationsFS(dir), nil)
	if err != nil {
		t.Fatalf("ParseMigrations: %v", err)
	}
	if len(migrations) != 2 || migrations[1].Name != "second" {
		t.Errorf("migrations = %+v", migrations)
	}
}

func TestResolveOptions(t *testing.T) {
	*datasetID = "ledger"
	defer func() { *datasetID = "" }()

	opts := resolveOptions(bqledger.Options{ProjectID: "proj", Dataset: "finance", ExpensesTable: "expenses"})
	if opts.ProjectID != "proj" || opts.Dataset != "ledger" || opts.ExpensesTable != "expenses" {
		t.Errorf("options = %+v", opts)
	}
}
