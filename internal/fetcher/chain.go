package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Chain tries an ordered list of strategies for a symbol and stops at the first success.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain creates a fallback chain. Strategies are tried in the given order.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		strategies: strategies,
		logger:     logger,
	}
}

// Len returns the number of strategies in the chain.
func (c *Chain) Len() int {
	return len(c.strategies)
}

// Describe returns the strategy names joined in fallback order,
// e.g. "alphavantage:quote+alphavantage:daily".
func (c *Chain) Describe() string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Resolve returns the quote from the first strategy that succeeds.
// Every failure is swallowed and the next strategy is tried; no partial result
// survives across strategies. When all strategies fail the returned error has
// type ErrorTypeExhausted and wraps the last failure.
func (c *Chain) Resolve(ctx context.Context, sym Symbol) (Quote, error) {
	var last error

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			if last == nil {
				last = err
			}
			return Quote{}, NewExhaustedError(last)
		}

		q, err := s.Fetch(ctx, sym)
		if err == nil {
			if q.Source == "" {
				q.Source = s.Name()
			}
			return q, nil
		}

		last = err
		c.logger.Debug("strategy failed",
			"symbol", sym.Name,
			"strategy", s.Name(),
			"error_type", errorType(err),
			"error", err)

		// A cancelled run must not keep issuing requests.
		if errors.Is(err, context.Canceled) {
			break
		}
	}

	return Quote{}, NewExhaustedError(last)
}

func errorType(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return string(fe.Type)
	}
	return "unknown"
}
