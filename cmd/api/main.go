package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/voice-ledger/internal/api/handlers"
	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/bootstrap"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		envFile     = flag.String("env", ".env", "Path to an optional dotenv file")
		port        = flag.String("port", "", "HTTP server port (overrides PORT)")
		sessionIdle = flag.Duration("session-idle", 30*time.Minute, "End sessions idle for longer than this")
	)
	flag.Parse()

	cfg, err := config.LoadFile(*envFile)

	// Initialize logger
	log := logger.NewWithLevel(cfg.Server.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx := logger.WithContext(context.Background(), log)

	services, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire services")
	}

	// Start the mirror worker in background
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := services.StartWorkers(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start mirror worker")
	}

	go sweepSessions(workerCtx, services, *sessionIdle)

	// Initialize handlers
	router := &handlers.Router{
		Sessions:   handlers.NewSessionsHandler(services.Manager, log),
		Dashboard:  handlers.NewDashboardHandler(services.Dashboard, log),
		Categories: handlers.NewCategoriesHandler(services.Categories, log),
		Jobs:       handlers.NewJobsHandler(services.JobStore, log),
	}
	if services.Auth != nil {
		router.Auth = handlers.NewAuthHandler(services.Auth, log)
	}

	mux := http.NewServeMux()
	router.Register(mux)

	var validator middleware.TokenValidator
	if services.Tokens != nil {
		validator = services.Tokens
	} else {
		log.Warn().Msg("JWT_SECRET not set - API is unauthenticated")
	}

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(validator, handlers.PublicPaths...)(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the mirror queue and wait for in-flight jobs
	if err := services.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping services")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

func sweepSessions(ctx context.Context, services *bootstrap.Services, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			services.Manager.Sweep(maxIdle)
		}
	}
}
