package fetcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is the normalized most recent observation for a symbol.
// A Quote is only meaningful when the Fetch that produced it returned a nil error,
// and its Price is then strictly positive.
type Quote struct {
	Price decimal.Decimal
	// AsOf is an opaque provider marker (a date or a timestamp) compared lexicographically.
	AsOf string
	// Source is the Name of the strategy that produced the quote.
	Source string
}

// Float returns the price as a float64 for JSON output.
func (q Quote) Float() float64 {
	return q.Price.InexactFloat64()
}

// ParsePrice parses a provider price string. Anything that is not a finite
// number strictly greater than zero is a no-data error.
func ParsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, NewNoDataError("price not found in response")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, NewNoDataError(fmt.Sprintf("unparseable price %q", raw))
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, NewNoDataError(fmt.Sprintf("non-positive price %s", raw))
	}
	// The snapshot carries float64, so the value must survive the conversion.
	if f := price.InexactFloat64(); math.IsInf(f, 0) || f <= 0 {
		return decimal.Decimal{}, NewNoDataError(fmt.Sprintf("price out of range %q", raw))
	}
	return price, nil
}

// NewQuote builds a Quote from raw provider fields.
func NewQuote(rawPrice, asOf, source string) (Quote, error) {
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Price:  price,
		AsOf:   strings.TrimSpace(asOf),
		Source: source,
	}, nil
}
