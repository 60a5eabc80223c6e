package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"quotefetcher/internal/alphavantage"
	"quotefetcher/internal/config"
	"quotefetcher/internal/coordinator"
	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/ratelimit"
	"quotefetcher/internal/snapshot"
	"quotefetcher/internal/stooq"
)

func main() {
	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run executes one fetch cycle and returns the process exit code.
// The snapshot is written only when the batch ran to completion.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := pflag.NewFlagSet("quotefetcher", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	config.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Load configuration
	cfg, err := config.Load(flags)
	if err != nil {
		newLogger(stderr, slog.LevelInfo, "text").Error("failed to load configuration", "error", err)
		return 1
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := newLogger(stderr, level, cfg.LogFormat).With("run_id", uuid.NewString())

	chain, err := newChain(cfg, logger)
	if err != nil {
		logger.Error("failed to build strategy chain", "error", err)
		return 1
	}

	symbols := cfg.SymbolSet()
	logger.Info("fetching prices",
		"symbols", len(symbols),
		"strategies", chain.Describe(),
		"output", cfg.OutputPath)

	snap := coordinator.New(chain, coordinator.WithLogger(logger)).Run(ctx, symbols)

	if err := ctx.Err(); err != nil {
		logger.Error("run interrupted, snapshot not written", "error", err)
		return 1
	}

	if err := snapshot.Write(cfg.OutputPath, snap); err != nil {
		logger.Error("failed to write snapshot", "path", cfg.OutputPath, "error", err)
		return 1
	}

	logger.Info("snapshot written",
		"path", cfg.OutputPath,
		"prices", len(snap.Prices),
		"errors", len(snap.Errors))
	return 0
}

// newChain creates strategies dynamically from configuration, in the configured order.
// All strategies share one limiter so spacing holds across the whole chain.
func newChain(cfg *config.Config, logger *slog.Logger) (*fetcher.Chain, error) {
	kinds, err := cfg.Kinds()
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(map[ratelimit.API]time.Duration{
		ratelimit.APIAlphaVantage: cfg.AlphavantageMinInterval,
		ratelimit.APIStooq:        cfg.StooqMinInterval,
	})

	var av *alphavantage.Client
	var strategies []fetcher.Strategy

	for _, kind := range kinds {
		switch {
		case alphavantage.Supports(kind):
			if av == nil {
				av = alphavantage.NewClient(
					cfg.AlphavantageAPIKey,
					cfg.AlphavantageBaseURL,
					alphavantage.WithLimiter(limiter),
					alphavantage.WithTimeout(cfg.RequestTimeout),
					alphavantage.WithLogger(logger),
				)
			}
			s, err := av.Strategy(kind)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, s)

		case kind == fetcher.KindStooq:
			strategies = append(strategies,
				stooq.NewClient(cfg.StooqBaseURL, limiter, cfg.RequestTimeout).SetLogger(logger))

		default:
			return nil, fmt.Errorf("no client for strategy %q", kind)
		}
	}

	return fetcher.NewChain(logger, strategies...), nil
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
