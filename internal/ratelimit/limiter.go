package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIAlphaVantage represents the AlphaVantage API
	APIAlphaVantage API = "alphavantage"
	// APIStooq represents the Stooq CSV endpoint
	APIStooq API = "stooq"
)

const (
	// DefaultAlphaVantageInterval keeps the free tier (5 requests per minute, i.e. one
	// every 12s) under its ceiling with margin.
	DefaultAlphaVantageInterval = 15 * time.Second
	// DefaultStooqInterval is a politeness gap; Stooq publishes no ceiling.
	DefaultStooqInterval = 800 * time.Millisecond
)

// Limiter enforces a minimum interval between the starts of consecutive
// outbound calls to the same API.
//
// Each API gets a token bucket of size one that starts full, so the first call
// never waits and nothing waits after the last call.
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter with the given minimum interval per API.
// A non-positive interval disables limiting for that API.
func New(intervals map[API]time.Duration) *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter, len(intervals)),
	}
	for api, interval := range intervals {
		l.Set(api, interval)
	}
	return l
}

// Unlimited returns a limiter that never waits. Useful in tests.
func Unlimited() *Limiter {
	return New(nil)
}

// Set replaces the interval for an API.
func (l *Limiter) Set(api API, interval time.Duration) {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	l.mu.Lock()
	l.limiters[api] = rate.NewLimiter(limit, 1)
	l.mu.Unlock()
}

// Wait blocks until the rate limiter permits a call to the given API.
// It returns an error if the context is canceled before the call can proceed.
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Interval returns the configured interval for an API, or zero if unlimited.
func (l *Limiter) Interval(api API) time.Duration {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists || limiter.Limit() == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limiter.Limit()))
}
