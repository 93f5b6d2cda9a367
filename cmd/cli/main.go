package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/auth"
	"github.com/dvloznov/voice-ledger/internal/bootstrap"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/dashboard"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat()
	case "summary":
		runSummary()
	case "hash-password":
		runHashPassword()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Voice Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  chat            Record expenses by talking to the assistant")
	fmt.Println("  summary         Show totals and the latest expenses")
	fmt.Println("  hash-password   Print a bcrypt hash for a user record")
	fmt.Println("  help            Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// loadConfig reads configuration and returns a logger at the requested level.
func loadConfig(envFile string, verbose bool) (config.Config, zerolog.Logger) {
	cfg, err := config.LoadFile(envFile)

	level := "warn"
	if verbose {
		level = cfg.Server.LogLevel
	}
	log := logger.NewWithLevel(level)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg, log
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	envFile := fs.String("env", ".env", "Path to an optional dotenv file")
	ledgerID := fs.String("ledger-id", "", "Ledger to write to (defaults to the configured one)")
	verbose := fs.Bool("v", false, "Log at the configured level instead of warn")
	fs.Parse(os.Args[2:])

	cfg, log := loadConfig(*envFile, *verbose)

	ctx := logger.WithContext(context.Background(), log)

	services, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire services")
	}
	if err := services.StartWorkers(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start mirror worker")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := services.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping services")
		}
	}()

	session := services.Manager.StartSession("", *ledgerID)

	fmt.Println("Tell me what you spent. Prefix a line with @ to send an audio file, /state to show the draft, /quit to leave.")
	if err := chat(ctx, services.Manager, session.ID, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Chat failed")
	}
}

func runSummary() {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	envFile := fs.String("env", ".env", "Path to an optional dotenv file")
	ledgerID := fs.String("ledger-id", "", "Ledger to summarize (defaults to the configured one)")
	recent := fs.Int("recent", dashboard.DefaultRecent, "Number of latest expenses to list")
	fs.Parse(os.Args[2:])

	cfg, log := loadConfig(*envFile, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)
	if *ledgerID != "" {
		ctx = ledger.WithLedgerID(ctx, *ledgerID)
	}

	store, closeLedger, err := bootstrap.OpenLedger(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer closeLedger()

	summary, err := dashboard.NewService(store).Summary(ctx, *recent)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to summarize ledger")
	}

	printSummary(os.Stdout, summary)
}

func runHashPassword() {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "no password read")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
