// Package stooq fetches daily snapshot quotes from the keyless Stooq CSV endpoint.
//
// The snapshot request is
//
//	GET https://stooq.com/q/l/?s=agi.us&f=sd2t2ohlcv&h&e=csv
//
// and returns a header row followed by one data row:
//
//	Symbol,Date,Time,Open,High,Low,Close,Volume
//	AGI.US,2024-01-02,22:00:09,12.1,12.6,12.0,12.5,1843200
//
// Unknown symbols come back with N/D in every data column.
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/ratelimit"

	"resty.dev/v3"
)

// DefaultBaseURL is the production snapshot endpoint.
const DefaultBaseURL = "https://stooq.com/q/l/"

const strategyName = "stooq:" + string(fetcher.KindStooq)

// Fields requested: symbol, date, time, open, high, low, close, volume.
const snapshotFields = "sd2t2ohlcv"

// Stooq answers over-quota clients with a plain text body instead of an HTTP status.
const hitsLimitMessage = "exceeded the daily hits limit"

// Client fetches snapshot quotes from Stooq
type Client struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewClient creates a new Stooq client
func NewClient(baseURL string, limiter *ratelimit.Limiter, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := fetcher.NewHTTPClient(baseURL, timeout).
		SetHeader("Accept", "text/csv")

	return &Client{
		client:  client,
		limiter: limiter,
		logger:  slog.Default(),
	}
}

// SetLogger replaces the client's logger. A nil logger is ignored.
func (c *Client) SetLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Name implements fetcher.Strategy
func (c *Client) Name() string {
	return strategyName
}

// Fetch implements fetcher.Strategy
func (c *Client) Fetch(ctx context.Context, sym fetcher.Symbol) (fetcher.Quote, error) {
	symbol := sym.StooqSymbol()

	if err := c.limiter.Wait(ctx, ratelimit.APIStooq); err != nil {
		return fetcher.Quote{}, fetcher.NewNetworkError(err)
	}

	c.logger.Debug("stooq request", "symbol", symbol)

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"s": symbol,
			"f": snapshotFields,
			"h": "",
			"e": "csv",
		}).
		Get("")

	if err := fetcher.CheckResponse(resp, err); err != nil {
		return fetcher.Quote{}, err
	}

	return parseSnapshot(resp.String())
}

// parseSnapshot reads the header and first data row of a snapshot CSV
func parseSnapshot(body string) (fetcher.Quote, error) {
	if strings.Contains(strings.ToLower(body), hitsLimitMessage) {
		return fetcher.Quote{}, fetcher.NewRateLimitError(0, strings.TrimSpace(body))
	}

	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return fetcher.Quote{}, fetcher.NewNoDataError("empty snapshot")
	}
	row, err := r.Read()
	if err == io.EOF {
		return fetcher.Quote{}, fetcher.NewNoDataError("snapshot has no data row")
	}
	if err != nil {
		return fetcher.Quote{}, fetcher.NewNoDataError(fmt.Sprintf("malformed snapshot: %v", err))
	}
	if len(row) != len(header) {
		return fetcher.Quote{}, fetcher.NewNoDataError("snapshot row does not match header")
	}

	data := make(map[string]string, len(header))
	for i, col := range header {
		data[strings.ToLower(strings.TrimSpace(col))] = strings.TrimSpace(row[i])
	}

	closePrice, ok := data["close"]
	if !ok {
		return fetcher.Quote{}, fetcher.NewNoDataError("snapshot has no Close column")
	}
	if isMissing(closePrice) {
		return fetcher.Quote{}, fetcher.NewNoDataError("no quote for symbol")
	}

	date := data["date"]
	if isMissing(date) {
		date = ""
	}

	return fetcher.NewQuote(closePrice, date, strategyName)
}

func isMissing(v string) bool {
	switch strings.ToUpper(v) {
	case "", "N/D", "N/A":
		return true
	}
	return false
}
