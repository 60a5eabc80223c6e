package fetcher

// Result represents the outcome of resolving one symbol.
// Exactly one of Quote and Error is meaningful: a nil Error means success.
type Result struct {
	// Symbol is the symbol that was resolved
	Symbol Symbol

	// Quote is the resolved price and marker
	Quote Quote

	// Error contains the failure if every strategy failed.
	// If Error is not nil, Quote should be considered invalid.
	Error error
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Error == nil
}
