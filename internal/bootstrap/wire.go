// Package bootstrap assembles the runtime graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/auth"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/conversation"
	"github.com/dvloznov/voice-ledger/internal/dashboard"
	"github.com/dvloznov/voice-ledger/internal/extractor"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	jobsmem "github.com/dvloznov/voice-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	bqledger "github.com/dvloznov/voice-ledger/internal/ledger/bigquery"
	"github.com/dvloznov/voice-ledger/internal/ledger/inmemory"
	"github.com/dvloznov/voice-ledger/internal/ledger/sheets"
	"github.com/dvloznov/voice-ledger/internal/notionsync"
	"github.com/dvloznov/voice-ledger/internal/recordings"
	"github.com/dvloznov/voice-ledger/internal/speech"
)

// mirrorQueueSize bounds the number of pending Notion mirror jobs.
const mirrorQueueSize = 100

// Services is the assembled runtime graph. Optional parts are nil when their
// configuration is absent.
type Services struct {
	Config config.Config

	Ledger     ledger.Store
	Manager    *conversation.Manager
	Dashboard  *dashboard.Service
	Categories extractor.CategorySource

	Tokens *auth.Tokens
	Auth   *auth.Service

	Mirror   *notionsync.Mirror
	Queue    *jobsmem.Queue
	JobStore *jobsmem.Store

	closers []func() error
}

// Backends lets callers replace the model-backed components, mainly in tests.
type Backends struct {
	Extractor   extractor.Extractor
	Transcriber speech.Transcriber
}

// Build wires every component selected by cfg.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Services, error) {
	return BuildWith(ctx, cfg, Backends{}, log)
}

// BuildWith is Build with some components supplied by the caller.
func BuildWith(ctx context.Context, cfg config.Config, b Backends, log zerolog.Logger) (*Services, error) {
	s := &Services{Config: cfg, JobStore: jobsmem.NewStore()}

	provisioner, err := s.buildLedger(ctx, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Dashboard = dashboard.NewService(s.Ledger)

	if b.Extractor == nil {
		if cfg.Gemini.APIKey == "" {
			s.Close()
			return nil, errors.New("Build: GEMINI_API_KEY is required")
		}
		b.Extractor, err = extractor.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.ExtractionModel, s.Categories, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
	}
	if b.Transcriber == nil && cfg.Gemini.APIKey != "" {
		b.Transcriber, err = speech.NewGeminiTranscriber(ctx, cfg.Gemini.APIKey, cfg.Gemini.TranscriptionModel, cfg.Gemini.Language, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
	}

	var archive recordings.Archive
	if cfg.Recordings.Bucket != "" {
		gcs, err := recordings.NewGCSArchive(ctx, cfg.Recordings.Bucket, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		s.closers = append(s.closers, gcs.Close)
		archive = gcs
	}

	var publisher jobs.Publisher
	if cfg.Notion.Enabled() {
		s.Mirror = notionsync.NewMirror(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID, log)
		s.Queue = jobsmem.NewQueue(jobsmem.Options{BufferSize: mirrorQueueSize}, s.JobStore)
		publisher = s.Queue
	}

	s.Manager = conversation.NewManager(conversation.Options{
		Extractor:   b.Extractor,
		Transcriber: b.Transcriber,
		Sink:        s.Ledger,
		Publisher:   publisher,
		Archive:     archive,
		StatusTag:   cfg.Server.StatusTag,
		Log:         log,
	})

	if cfg.Auth.Enabled() {
		s.Tokens = auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if cfg.Auth.FirebaseURL != "" {
			dir := auth.NewDirectory(cfg.Auth.FirebaseURL, &http.Client{Timeout: 10 * time.Second}, log)
			s.Auth = auth.NewService(dir, s.Tokens, provisioner, log)
		}
	}

	log.Info().
		Str("ledger_backend", cfg.Ledger.Backend).
		Bool("notion_mirror", s.Mirror != nil).
		Bool("recordings", archive != nil).
		Bool("audio", b.Transcriber != nil).
		Bool("auth", s.Tokens != nil).
		Msg("Services wired")

	return s, nil
}

func (s *Services) buildLedger(ctx context.Context, log zerolog.Logger) (auth.LedgerProvisioner, error) {
	cfg := s.Config.Ledger

	switch cfg.Backend {
	case config.BackendMemory:
		s.Ledger = inmemory.NewStore()
		return nil, nil

	case config.BackendSheets:
		api, err := sheets.NewGoogleValues(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		l := sheets.NewLedger(api, cfg.SpreadsheetID, nil, log)
		s.Ledger = l
		return l, nil

	case config.BackendBigQuery:
		repo, err := bqledger.NewRepository(ctx, BigQueryOptions(s.Config), log)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		s.Ledger = repo
		s.Categories = repo
		return repo, nil
	}

	return nil, fmt.Errorf("Build: unknown ledger backend %q", cfg.Backend)
}

// OpenLedger opens only the configured ledger backend, for tools that run no
// dialogue. The returned function releases it.
func OpenLedger(ctx context.Context, cfg config.Config, log zerolog.Logger) (ledger.Store, func() error, error) {
	s := &Services{Config: cfg}
	if _, err := s.buildLedger(ctx, log); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s.Ledger, s.Close, nil
}

// BigQueryOptions maps the ledger configuration onto repository options.
func BigQueryOptions(cfg config.Config) bqledger.Options {
	return bqledger.Options{
		ProjectID:       cfg.Ledger.ProjectID,
		Dataset:         cfg.Ledger.Dataset,
		ExpensesTable:   cfg.Ledger.Table,
		CategoriesTable: cfg.Ledger.CategoriesTable,
	}
}

// StartWorkers starts the Notion mirror workers. It is a no-op when mirroring
// is disabled.
func (s *Services) StartWorkers(ctx context.Context) error {
	if s.Queue == nil {
		return nil
	}
	return s.Queue.Start(ctx, s.Mirror.Handler())
}

// Shutdown stops the mirror queue, waiting up to the context deadline for in-flight
// jobs, and releases every client.
func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error
	if s.Queue != nil {
		if err := s.Queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping mirror queue: %w", err))
		}
		if err := s.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing mirror queue: %w", err))
		}
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the backend clients.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
