package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	BackendSheets   = "sheets"
	BackendBigQuery = "bigquery"
	BackendMemory   = "memory"
)

// Config holds runtime configuration for the API server and the CLI.
type Config struct {
	Server     ServerConfig
	Gemini     GeminiConfig
	Ledger     LedgerConfig
	Notion     NotionConfig
	Recordings RecordingsConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Port      string
	LogLevel  string
	StatusTag string
}

type GeminiConfig struct {
	APIKey             string
	ExtractionModel    string
	TranscriptionModel string
	Language           string
}

type LedgerConfig struct {
	Backend         string
	SpreadsheetID   string
	CredentialsFile string
	ProjectID       string
	Dataset         string
	Table           string
	CategoriesTable string
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

// Enabled reports whether committed expenses should be mirrored to Notion.
func (n NotionConfig) Enabled() bool {
	return n.Token != "" && n.DatabaseID != ""
}

type RecordingsConfig struct {
	Bucket string
}

type AuthConfig struct {
	FirebaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
}

// Enabled reports whether bearer tokens are required on the API.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// Load reads an optional .env file and resolves configuration from the environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Port:      envOrDefault("PORT", "8080"),
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			StatusTag: envOrDefault("LEDGER_STATUS_TAG", "Confirmed"),
		},
		Gemini: GeminiConfig{
			APIKey:             firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
			ExtractionModel:    envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			TranscriptionModel: envOrDefault("GEMINI_TRANSCRIPTION_MODEL", "gemini-2.5-flash"),
			Language:           envOrDefault("SPEECH_LANGUAGE", "pt-BR"),
		},
		Ledger: LedgerConfig{
			Backend:         strings.ToLower(envOrDefault("LEDGER_BACKEND", BackendSheets)),
			SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")),
			CredentialsFile: envOrDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			ProjectID:       strings.TrimSpace(os.Getenv("GCP_PROJECT")),
			Dataset:         envOrDefault("BQ_DATASET", "finance"),
			Table:           envOrDefault("BQ_EXPENSES_TABLE", "expenses"),
			CategoriesTable: envOrDefault("BQ_CATEGORIES_TABLE", "categories"),
		},
		Notion: NotionConfig{
			Token:      strings.TrimSpace(os.Getenv("NOTION_TOKEN")),
			DatabaseID: strings.TrimSpace(os.Getenv("NOTION_EXPENSES_DB_ID")),
		},
		Recordings: RecordingsConfig{
			Bucket: strings.TrimSpace(os.Getenv("RECORDINGS_BUCKET")),
		},
		Auth: AuthConfig{
			FirebaseURL: strings.TrimSpace(os.Getenv("FIREBASE_URL")),
			JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
			TokenTTL:    envOrDefaultDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
	}

	return cfg, cfg.Validate()
}

// Validate reports settings missing for the selected ledger backend.
func (c Config) Validate() error {
	var problems []string

	switch c.Ledger.Backend {
	case BackendSheets:
		if c.Ledger.SpreadsheetID == "" && c.Auth.FirebaseURL == "" {
			problems = append(problems, "GOOGLE_SHEETS_SPREADSHEET_ID is required for the sheets backend")
		}
	case BackendBigQuery:
		if c.Ledger.ProjectID == "" {
			problems = append(problems, "GCP_PROJECT is required for the bigquery backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown LEDGER_BACKEND %q", c.Ledger.Backend))
	}

	if c.Auth.FirebaseURL != "" && c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required when FIREBASE_URL is set")
	}

	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
