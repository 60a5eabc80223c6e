package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotefetcher/internal/fetcher"
	"quotefetcher/internal/ratelimit"
)

// newServer returns a test server that always replies with status and body
func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	client := NewClient("test_api_key", "")

	require.NotNil(t, client)
	assert.Equal(t, "test_api_key", client.apiKey)
	assert.NotNil(t, client.client)
	assert.NotNil(t, client.logger)
}

func TestFetch_GlobalQuote_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GLOBAL_QUOTE", q.Get("function"))
		assert.Equal(t, "AGI", q.Get("symbol"))
		assert.Equal(t, "test_key", q.Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"Global Quote": {
				"01. symbol": "AGI",
				"02. open": "12.10",
				"03. high": "12.75",
				"04. low": "12.00",
				"05. price": "12.5000",
				"06. volume": "5000000",
				"07. latest trading day": "2024-01-02",
				"08. previous close": "12.20",
				"09. change": "0.30",
				"10. change percent": "2.4590%"
			}
		}`))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL)
	q, err := client.Fetch(context.Background(), fetcher.KindQuote, "AGI")
	require.NoError(t, err)

	assert.Equal(t, 12.5, q.Float())
	assert.Equal(t, "2024-01-02", q.AsOf)
	assert.Equal(t, "alphavantage:quote", q.Source)
}

func TestFetch_DailySeries_PicksLatestBar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "TIME_SERIES_DAILY", q.Get("function"))
		assert.Equal(t, "compact", q.Get("outputsize"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Meta Data": {"2. Symbol": "FSM", "3. Last Refreshed": "2024-01-03"},
			"Time Series (Daily)": {
				"2024-01-02": {"1. open": "3.00", "4. close": "3.05"},
				"2024-01-03": {"1. open": "3.05", "4. close": "3.10"},
				"2023-12-29": {"1. open": "2.90", "4. close": "2.95"}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL)
	q, err := client.Fetch(context.Background(), fetcher.KindDaily, "FSM")
	require.NoError(t, err)

	assert.Equal(t, 3.1, q.Float())
	assert.Equal(t, "2024-01-03", q.AsOf)
	assert.Equal(t, "alphavantage:daily", q.Source)
}

func TestFetch_IntradaySeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "TIME_SERIES_INTRADAY", q.Get("function"))
		assert.Equal(t, "5min", q.Get("interval"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Time Series (5min)": {
				"2024-01-02 15:55:00": {"4. close": "7.01"},
				"2024-01-02 16:00:00": {"4. close": "7.02"}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL)
	q, err := client.Fetch(context.Background(), fetcher.KindIntraday, "GAU")
	require.NoError(t, err)

	assert.Equal(t, 7.02, q.Float())
	assert.Equal(t, "2024-01-02 16:00:00", q.AsOf)
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		kind     fetcher.Kind
		status   int
		body     string
		wantType fetcher.ErrorType
	}{
		{
			name:     "note is throttling",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
			wantType: fetcher.ErrorTypeRateLimit,
		},
		{
			name:     "information about rate limit is throttling",
			kind:     fetcher.KindDaily,
			status:   http.StatusOK,
			body:     `{"Information": "We have detected your API key and our standard API rate limit is 25 requests per day."}`,
			wantType: fetcher.ErrorTypeRateLimit,
		},
		{
			name:     "other information is a rejection",
			kind:     fetcher.KindIntraday,
			status:   http.StatusOK,
			body:     `{"Information": "This is a premium endpoint."}`,
			wantType: fetcher.ErrorTypeRejected,
		},
		{
			name:     "error message is a rejection",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`,
			wantType: fetcher.ErrorTypeRejected,
		},
		{
			name:     "throttling wins over error message",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{"Note": "slow down", "Error Message": "bad symbol"}`,
			wantType: fetcher.ErrorTypeRateLimit,
		},
		{
			name:     "http 429",
			kind:     fetcher.KindQuote,
			status:   http.StatusTooManyRequests,
			body:     ``,
			wantType: fetcher.ErrorTypeRateLimit,
		},
		{
			name:     "http 500",
			kind:     fetcher.KindQuote,
			status:   http.StatusInternalServerError,
			body:     ``,
			wantType: fetcher.ErrorTypeServer,
		},
		{
			name:     "http 403",
			kind:     fetcher.KindQuote,
			status:   http.StatusForbidden,
			body:     `forbidden`,
			wantType: fetcher.ErrorTypeRejected,
		},
		{
			name:     "empty object",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "empty global quote",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{"Global Quote": {}}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "global quote wrong shape",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{"Global Quote": ["12.5"]}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "unparseable price",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{"Global Quote": {"05. price": "invalid_number"}}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "zero price",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `{"Global Quote": {"05. price": "0.0000"}}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "negative close",
			kind:     fetcher.KindDaily,
			status:   http.StatusOK,
			body:     `{"Time Series (Daily)": {"2024-01-02": {"4. close": "-1.00"}}}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "empty series",
			kind:     fetcher.KindDaily,
			status:   http.StatusOK,
			body:     `{"Time Series (Daily)": {}}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "latest bar missing close",
			kind:     fetcher.KindDaily,
			status:   http.StatusOK,
			body:     `{"Time Series (Daily)": {"2024-01-02": {"1. open": "1.00"}}}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "series missing",
			kind:     fetcher.KindDaily,
			status:   http.StatusOK,
			body:     `{"Meta Data": {}}`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "not json",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `<html>maintenance</html>`,
			wantType: fetcher.ErrorTypeNoData,
		},
		{
			name:     "json array",
			kind:     fetcher.KindQuote,
			status:   http.StatusOK,
			body:     `[]`,
			wantType: fetcher.ErrorTypeNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newServer(t, tt.status, tt.body)
			client := NewClient("test_key", server.URL)

			_, err := client.Fetch(context.Background(), tt.kind, "AGI")
			require.Error(t, err)
			assert.Truef(t, fetcher.IsType(err, tt.wantType), "error %q is not of type %q", err, tt.wantType)
		})
	}
}

func TestFetch_RateLimitKeepsProviderMessage(t *testing.T) {
	server := newServer(t, http.StatusOK, `{"Note": "Our standard API call frequency is 5 calls per minute."}`)
	client := NewClient("test_key", server.URL)

	_, err := client.Fetch(context.Background(), fetcher.KindQuote, "AGI")
	require.Error(t, err)
	assert.Equal(t, "rate limited: Our standard API call frequency is 5 calls per minute.", err.Error())
}

func TestFetch_NetworkError(t *testing.T) {
	server := newServer(t, http.StatusOK, `{}`)
	url := server.URL
	server.Close()

	client := NewClient("test_key", url)
	_, err := client.Fetch(context.Background(), fetcher.KindQuote, "AGI")
	require.Error(t, err)
	assert.True(t, fetcher.IsType(err, fetcher.ErrorTypeNetwork))
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL, WithTimeout(50*time.Millisecond))
	_, err := client.Fetch(context.Background(), fetcher.KindQuote, "AGI")
	require.Error(t, err)
	assert.True(t, fetcher.IsType(err, fetcher.ErrorTypeTimeout) || fetcher.IsType(err, fetcher.ErrorTypeNetwork))
}

func TestFetch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, fetcher.KindQuote, "AGI")
	assert.Error(t, err)
}

func TestFetch_EmptySymbol(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL)
	_, err := client.Fetch(context.Background(), fetcher.KindQuote, "")
	assert.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestFetch_UsesLimiter(t *testing.T) {
	server := newServer(t, http.StatusOK, `{"Global Quote": {"05. price": "1.00"}}`)

	interval := 80 * time.Millisecond
	limiter := ratelimit.New(map[ratelimit.API]time.Duration{ratelimit.APIAlphaVantage: interval})
	client := NewClient("test_key", server.URL, WithLimiter(limiter))

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := client.Fetch(context.Background(), fetcher.KindQuote, "AGI")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), interval-10*time.Millisecond)
}

func TestStrategy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AGI.TO", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"Global Quote": {"05. price": "18.40", "07. latest trading day": "2024-01-02"}}`))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL)

	s, err := client.Strategy(fetcher.KindQuote)
	require.NoError(t, err)
	assert.Equal(t, "alphavantage:quote", s.Name())

	q, err := s.Fetch(context.Background(), fetcher.Symbol{Name: "AGI", Provider: "AGI.TO"})
	require.NoError(t, err)
	assert.Equal(t, 18.4, q.Float())

	_, err = client.Strategy(fetcher.KindStooq)
	assert.Error(t, err)
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports(fetcher.KindQuote))
	assert.True(t, Supports(fetcher.KindDaily))
	assert.True(t, Supports(fetcher.KindIntraday))
	assert.False(t, Supports(fetcher.KindStooq))
}
