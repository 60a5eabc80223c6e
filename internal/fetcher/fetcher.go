package fetcher

import (
	"context"
	"fmt"
	"strings"
)

// Kind names one concrete way of querying a provider for a price.
type Kind string

const (
	// KindQuote is the point-in-time quote endpoint (Alpha Vantage GLOBAL_QUOTE)
	KindQuote Kind = "quote"
	// KindDaily is the compact daily time series (Alpha Vantage TIME_SERIES_DAILY)
	KindDaily Kind = "daily"
	// KindIntraday is the compact intraday time series (Alpha Vantage TIME_SERIES_INTRADAY)
	KindIntraday Kind = "intraday"
	// KindStooq is the Stooq daily snapshot CSV
	KindStooq Kind = "stooq"
)

// Kinds lists every supported strategy kind.
var Kinds = []Kind{KindQuote, KindDaily, KindIntraday, KindStooq}

// ParseKind converts a configured strategy name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Symbol identifies an instrument internally and carries its provider spellings.
type Symbol struct {
	// Name is the internal ticker used as the key in the snapshot
	Name string
	// Provider is the Alpha Vantage spelling; defaults to Name
	Provider string
	// Stooq is the Stooq spelling; defaults to lower(Name)+".us"
	Stooq string
}

// ProviderSymbol returns the Alpha Vantage symbol.
func (s Symbol) ProviderSymbol() string {
	if s.Provider != "" {
		return s.Provider
	}
	return s.Name
}

// StooqSymbol returns the Stooq symbol.
func (s Symbol) StooqSymbol() string {
	if s.Stooq != "" {
		return s.Stooq
	}
	return strings.ToLower(s.Name) + ".us"
}

//go:generate mockgen -package=fetcher_test -destination=mock_strategy_test.go -source=fetcher.go Strategy

// Strategy is the core interface every provider strategy implements.
// A Strategy performs exactly one outbound request per Fetch and never retries.
type Strategy interface {
	// Name identifies the provider and kind, e.g. "alphavantage:quote".
	Name() string

	// Fetch retrieves the latest price for sym.
	// Failures are returned as *FetchError.
	Fetch(ctx context.Context, sym Symbol) (Quote, error)
}
