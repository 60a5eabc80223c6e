package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"resty.dev/v3"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "quotefetcher/1.0"
)

// NewHTTPClient creates an HTTP client for a single provider.
// Retries are not configured; a failed call falls through to the next strategy.
func NewHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", defaultUserAgent)
}

// CheckResponse converts a transport error or non-2xx response into a FetchError.
// It returns nil when the response can be parsed.
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		if isTimeout(err) {
			return NewTimeoutError(err)
		}
		return NewNetworkError(err)
	}

	if !resp.IsSuccess() {
		slog.Debug("provider returned non-success status",
			"url", resp.Request.URL,
			"status_code", resp.StatusCode())
		return ClassifyHTTPError(resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	return nil
}

// isTimeout reports whether err was caused by a deadline rather than a refused connection
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
