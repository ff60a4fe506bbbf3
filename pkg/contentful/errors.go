package contentful

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNotFound is returned when the requested item does not exist upstream.
	ErrNotFound = errors.New("item not found")

	// ErrUnknownItemType is returned for item types outside the fetch table.
	// Callers surface it as not-found without contacting upstream.
	ErrUnknownItemType = errors.New("unknown item type")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of upstream errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// UpstreamError represents an upstream HTTP error with additional context.
type UpstreamError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("contentful %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("contentful %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyStatus categorizes an HTTP status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classify categorizes an error for retry decisions and observability.
func classify(err error) ErrorClass {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Class
	}
	return ErrorClassNetwork
}

// shouldRetry determines if an error should be retried based on its classification.
// Semantic 4xx responses are never retried; only transport-level failures are.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
