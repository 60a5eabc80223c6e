package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"quotefetcher/internal/fetcher"
)

// MockStrategy is a mock implementation of the fetcher.Strategy interface for testing
type MockStrategy struct {
	FetchFunc func(ctx context.Context, sym fetcher.Symbol) (fetcher.Quote, error)
	NameFunc  func() string

	mu    sync.Mutex
	calls []string
}

// Fetch implements the fetcher.Strategy interface
func (m *MockStrategy) Fetch(ctx context.Context, sym fetcher.Symbol) (fetcher.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sym.Name)
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, sym)
	}
	return fetcher.Quote{}, fetcher.NewNoDataError("mock has no data")
}

// Name implements the fetcher.Strategy interface
func (m *MockStrategy) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock:strategy"
}

// Calls returns the symbol names Fetch was called with, in order
func (m *MockStrategy) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Response is a canned reply for one symbol
type Response struct {
	Price string
	AsOf  string
	Err   error
}

// NewMockStrategy creates a mock strategy that answers from a per-symbol table.
// Symbols missing from the table fail with a no-data error.
func NewMockStrategy(name string, responses map[string]Response) *MockStrategy {
	return &MockStrategy{
		FetchFunc: func(ctx context.Context, sym fetcher.Symbol) (fetcher.Quote, error) {
			r, ok := responses[sym.Name]
			if !ok {
				return fetcher.Quote{}, fetcher.NewNoDataError("no response for " + sym.Name)
			}
			if r.Err != nil {
				return fetcher.Quote{}, r.Err
			}
			return fetcher.Quote{
				Price:  decimal.RequireFromString(r.Price),
				AsOf:   r.AsOf,
				Source: name,
			}, nil
		},
		NameFunc: func() string {
			return name
		},
	}
}
