package fetcher

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error that occurred during a fetch operation
type ErrorType string

const (
	// ErrorTypeRateLimit indicates the provider declined or degraded the request due to throughput limits
	ErrorTypeRateLimit ErrorType = "rate limited"
	// ErrorTypeRejected indicates the provider returned an explicit error payload
	ErrorTypeRejected ErrorType = "provider rejected"
	// ErrorTypeNoData indicates the response was received but no usable price could be extracted
	ErrorTypeNoData ErrorType = "no data"
	// ErrorTypeExhausted indicates every strategy for a symbol failed
	ErrorTypeExhausted ErrorType = "all strategies failed"
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeTimeout indicates the request timed out
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
)

// FetchError represents a structured error from a fetch operation
type FetchError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewRateLimitError creates a rate limit error carrying the provider's message
func NewRateLimitError(statusCode int, message string) *FetchError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return &FetchError{
		Type:       ErrorTypeRateLimit,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewRejectedError creates a provider-reported error
func NewRejectedError(statusCode int, message string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeRejected,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewNoDataError creates an error for a malformed or empty result
func NewNoDataError(message string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeNoData,
		Message: message,
	}
}

// NewExhaustedError wraps the last failure observed after every strategy failed
func NewExhaustedError(last error) *FetchError {
	if last == nil {
		return &FetchError{
			Type:    ErrorTypeExhausted,
			Message: "no strategies configured",
		}
	}
	return &FetchError{
		Type:    ErrorTypeExhausted,
		Message: last.Error(),
		Cause:   last,
	}
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Type:    ErrorTypeNetwork,
		Message: fmt.Sprintf("network request failed: %v", cause),
		Cause:   cause,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(cause error) *FetchError {
	return &FetchError{
		Type:    ErrorTypeTimeout,
		Message: "request timed out",
		Cause:   cause,
	}
}

// NewServerError creates a server error
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeServer,
		StatusCode: statusCode,
		Message:    "server returned an error",
	}
}

// ClassifyHTTPError classifies a non-2xx HTTP status code into an appropriate FetchError
func ClassifyHTTPError(statusCode int, body string) *FetchError {
	switch {
	case statusCode == 429:
		return NewRateLimitError(statusCode, "")
	case statusCode >= 500:
		return NewServerError(statusCode)
	default:
		msg := body
		if msg == "" || len(msg) > 200 {
			msg = fmt.Sprintf("client error: HTTP %d", statusCode)
		}
		return NewRejectedError(statusCode, msg)
	}
}

// IsType reports whether any FetchError in err's chain has the given type
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Type == t {
			return true
		}
		err = fe.Cause
	}
	return false
}

// Reason returns the human-readable failure reason recorded for a symbol.
// An exhausted chain reports its last underlying reason verbatim.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Type == ErrorTypeExhausted && fe.Cause != nil {
		return fe.Cause.Error()
	}
	return err.Error()
}
