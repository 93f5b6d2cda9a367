package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"PORT", "LOG_LEVEL", "LEDGER_STATUS_TAG",
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL", "GEMINI_TRANSCRIPTION_MODEL", "SPEECH_LANGUAGE",
	"LEDGER_BACKEND", "GOOGLE_SHEETS_SPREADSHEET_ID", "GOOGLE_CREDENTIALS_FILE", "GCP_PROJECT",
	"BQ_DATASET", "BQ_EXPENSES_TABLE", "BQ_CATEGORIES_TABLE",
	"NOTION_TOKEN", "NOTION_EXPENSES_DB_ID", "RECORDINGS_BUCKET",
	"FIREBASE_URL", "JWT_SECRET", "AUTH_TOKEN_TTL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "memory")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.StatusTag != "Confirmed" {
		t.Errorf("status tag = %q", cfg.Server.StatusTag)
	}
	if cfg.Gemini.ExtractionModel != "gemini-2.5-flash" {
		t.Errorf("extraction model = %q", cfg.Gemini.ExtractionModel)
	}
	if cfg.Ledger.Dataset != "finance" || cfg.Ledger.Table != "expenses" {
		t.Errorf("bigquery defaults = %q.%q", cfg.Ledger.Dataset, cfg.Ledger.Table)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %s", cfg.Auth.TokenTTL)
	}
	if cfg.Notion.Enabled() || cfg.Auth.Enabled() {
		t.Error("expected notion and auth to be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "BigQuery")
	t.Setenv("GCP_PROJECT", "my-project")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")
	t.Setenv("AUTH_TOKEN_TTL", "3600")
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("NOTION_EXPENSES_DB_ID", "db")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Ledger.Backend != BackendBigQuery {
		t.Errorf("backend = %q", cfg.Ledger.Backend)
	}
	if cfg.Gemini.APIKey != "fallback-key" {
		t.Errorf("api key = %q", cfg.Gemini.APIKey)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("token ttl = %s, want 1h", cfg.Auth.TokenTTL)
	}
	if !cfg.Notion.Enabled() {
		t.Error("expected notion to be enabled")
	}
}

func TestLoadFromDotenv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("LEDGER_BACKEND")
	os.Unsetenv("GOOGLE_SHEETS_SPREADSHEET_ID")

	path := filepath.Join(t.TempDir(), ".env")
	content := "LEDGER_BACKEND=sheets\nGOOGLE_SHEETS_SPREADSHEET_ID=sheet-123\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Ledger.SpreadsheetID != "sheet-123" {
		t.Errorf("spreadsheet id = %q", cfg.Ledger.SpreadsheetID)
	}
}

func TestLoadMissingDotenvIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "memory")

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing dotenv to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "sheets without spreadsheet",
			cfg:     Config{Ledger: LedgerConfig{Backend: BackendSheets}},
			wantErr: "GOOGLE_SHEETS_SPREADSHEET_ID",
		},
		{
			name: "sheets with per-user spreadsheets",
			cfg: Config{
				Ledger: LedgerConfig{Backend: BackendSheets},
				Auth:   AuthConfig{FirebaseURL: "https://x.firebaseio.com/", JWTSecret: "s"},
			},
		},
		{
			name:    "bigquery without project",
			cfg:     Config{Ledger: LedgerConfig{Backend: BackendBigQuery}},
			wantErr: "GCP_PROJECT",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Ledger: LedgerConfig{Backend: "excel"}},
			wantErr: "unknown LEDGER_BACKEND",
		},
		{
			name: "firebase without secret",
			cfg: Config{
				Ledger: LedgerConfig{Backend: BackendMemory},
				Auth:   AuthConfig{FirebaseURL: "https://x.firebaseio.com/"},
			},
			wantErr: "JWT_SECRET",
		},
		{
			name: "memory",
			cfg:  Config{Ledger: LedgerConfig{Backend: BackendMemory}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
