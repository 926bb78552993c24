package origin

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass categorizes failed origin requests.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses (no retry)
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses (retry)
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures (retry)
	ErrorClassNetwork ErrorClass = "network"
)

// OriginError describes a failed request to the origin.
type OriginError struct {
	Method     string
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *OriginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("origin %s error: %s %s: %v", e.ErrorClass, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("origin %s error: %s %s: status %d", e.ErrorClass, e.Method, e.URL, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OriginError) Unwrap() error {
	return e.Err
}

// classify returns the class of an error status, or "" for a success.
func classify(statusCode int) ErrorClass {
	switch {
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode >= 400:
		return ErrorClassClient
	}
	return ""
}

// shouldRetry reports whether a failure of errorClass is worth another attempt.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	}
	return false
}
