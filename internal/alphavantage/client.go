package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/ratelimit"

	"resty.dev/v3"
)

// DefaultBaseURL is the production query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// providerName prefixes strategy names, e.g. "alphavantage:quote".
const providerName = "alphavantage"

// Client issues single, unretried requests against the Alpha Vantage query endpoint.
type Client struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter sets the rate limiter consulted before every request.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		apiKey: apiKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = fetcher.NewHTTPClient(baseURL, c.timeout)

	return c
}

// Supports reports whether the client implements the given strategy kind.
func Supports(kind fetcher.Kind) bool {
	switch kind {
	case fetcher.KindQuote, fetcher.KindDaily, fetcher.KindIntraday:
		return true
	}
	return false
}

// Fetch performs one request of the given kind for providerSymbol and
// normalizes the response into a Quote.
func (c *Client) Fetch(ctx context.Context, kind fetcher.Kind, providerSymbol string) (fetcher.Quote, error) {
	if providerSymbol == "" {
		return fetcher.Quote{}, fmt.Errorf("empty provider symbol")
	}

	params, err := queryParams(kind, providerSymbol)
	if err != nil {
		return fetcher.Quote{}, err
	}
	params["apikey"] = c.apiKey

	payload, err := c.get(ctx, params)
	if err != nil {
		return fetcher.Quote{}, err
	}

	source := strategyName(kind)
	switch kind {
	case fetcher.KindQuote:
		return parseGlobalQuote(payload, source)
	default:
		return parseSeries(payload, source)
	}
}

// Strategy returns a fetcher.Strategy bound to a single kind.
func (c *Client) Strategy(kind fetcher.Kind) (fetcher.Strategy, error) {
	if !Supports(kind) {
		return nil, fmt.Errorf("alphavantage does not support strategy %q", kind)
	}
	return &strategy{client: c, kind: kind}, nil
}

func queryParams(kind fetcher.Kind, symbol string) (map[string]string, error) {
	switch kind {
	case fetcher.KindQuote:
		return map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   symbol,
		}, nil
	case fetcher.KindDaily:
		return map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     symbol,
			"outputsize": "compact",
		}, nil
	case fetcher.KindIntraday:
		return map[string]string{
			"function":   "TIME_SERIES_INTRADAY",
			"symbol":     symbol,
			"interval":   "5min",
			"outputsize": "compact",
		}, nil
	}
	return nil, fmt.Errorf("alphavantage does not support strategy %q", kind)
}

// get performs the request and returns the decoded top-level object after
// checking for throttling and provider error signals, in that order.
func (c *Client) get(ctx context.Context, params map[string]string) (map[string]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return nil, fetcher.NewNetworkError(err)
	}

	c.logger.Debug("alphavantage request",
		"function", params["function"],
		"symbol", params["symbol"])

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("")

	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(resp.String()), &payload); err != nil || payload == nil {
		return nil, fetcher.NewNoDataError("response is not a JSON object")
	}

	if err := checkSignals(payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// checkSignals inspects the informational keys Alpha Vantage uses instead of HTTP status codes.
func checkSignals(payload map[string]json.RawMessage) error {
	if note, ok := stringField(payload, "Note"); ok {
		return fetcher.NewRateLimitError(0, note)
	}
	if info, ok := stringField(payload, "Information"); ok {
		if isThrottleMessage(info) {
			return fetcher.NewRateLimitError(0, info)
		}
		return fetcher.NewRejectedError(0, info)
	}
	if msg, ok := stringField(payload, "Error Message"); ok {
		return fetcher.NewRejectedError(0, msg)
	}
	return nil
}

var throttleHints = []string{
	"rate limit",
	"call frequency",
	"requests per day",
	"requests per minute",
	"calls per minute",
}

func isThrottleMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, hint := range throttleHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func stringField(payload map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := payload[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Present but not a string still counts as a signal.
		return strings.TrimSpace(string(raw)), true
	}
	return s, true
}

func strategyName(kind fetcher.Kind) string {
	return providerName + ":" + string(kind)
}

// strategy binds a Client to one kind
type strategy struct {
	client *Client
	kind   fetcher.Kind
}

func (s *strategy) Name() string {
	return strategyName(s.kind)
}

func (s *strategy) Fetch(ctx context.Context, sym fetcher.Symbol) (fetcher.Quote, error) {
	return s.client.Fetch(ctx, s.kind, sym.ProviderSymbol())
}
