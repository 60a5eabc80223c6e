package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/snapshot"
)

// Resolver resolves a single symbol to a quote. *fetcher.Chain implements it.
type Resolver interface {
	Resolve(ctx context.Context, sym fetcher.Symbol) (fetcher.Quote, error)
	Describe() string
}

// Coordinator runs the fallback chain over the configured symbols, one at a time
type Coordinator struct {
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithClock sets the clock used for the run timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a new Coordinator with the given resolver
func New(resolver Resolver, opts ...Option) *Coordinator {
	c := &Coordinator{
		resolver: resolver,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run resolves every symbol in order and returns the finalized snapshot.
//
// Symbols are processed sequentially, with at most one outbound call in
// flight. A failed symbol is recorded in the snapshot's errors and never
// stops the batch. Spacing between outbound calls is enforced by the rate
// limiter inside each strategy.
//
// If ctx is cancelled the remaining symbols are recorded with the
// cancellation as their reason; callers should check ctx.Err() before
// persisting the result.
func (c *Coordinator) Run(ctx context.Context, symbols []fetcher.Symbol) *snapshot.Snapshot {
	snap := snapshot.New(c.now(), c.resolver.Describe())

	for i, sym := range symbols {
		result := c.resolve(ctx, sym)
		snap.Record(result)

		if result.OK() {
			c.logger.Info("price resolved",
				"symbol", sym.Name,
				"price", result.Quote.Float(),
				"as_of", result.Quote.AsOf,
				"strategy", result.Quote.Source,
				"progress", progress(i, len(symbols)))
		} else {
			c.logger.Warn("price unavailable",
				"symbol", sym.Name,
				"reason", fetcher.Reason(result.Error),
				"progress", progress(i, len(symbols)))
		}
	}

	snap.Finalize()

	c.logger.Info("run complete",
		"symbols", len(symbols),
		"prices", len(snap.Prices),
		"errors", len(snap.Errors),
		"latest_marker", snap.LatestObservedMarker)

	return snap
}

// resolve invokes the resolver and converts its outcome into a Result
func (c *Coordinator) resolve(ctx context.Context, sym fetcher.Symbol) fetcher.Result {
	if err := ctx.Err(); err != nil {
		return fetcher.Result{Symbol: sym, Error: fetcher.NewExhaustedError(err)}
	}

	q, err := c.resolver.Resolve(ctx, sym)
	return fetcher.Result{
		Symbol: sym,
		Quote:  q,
		Error:  err,
	}
}

func progress(i, n int) string {
	return fmt.Sprintf("%d/%d", i+1, n)
}
