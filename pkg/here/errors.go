package here

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass represents a classification of upstream failures. The class
// assigned on the first failing attempt survives retry exhaustion, so
// callers can always distinguish a 429-exhausted failure from a
// 5xx-exhausted one.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (other than 429).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents HTTP 429 quota exhaustion.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// ErrRetryExhausted is wrapped around the last attempt's error when all
// retry attempts are used up.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// Error is an upstream provider error with its classification.
type Error struct {
	Operation  string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("here %s: %s error (status %d): %s: %v",
			e.Operation, e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("here %s: %s error (status %d): %s",
		e.Operation, e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// shouldRetry determines if an error class is worth another attempt.
// Rate-limit responses deliberately short-circuit retry: hammering a
// provider that just signaled quota exhaustion only deepens the hole, so
// the caller gets a distinguished RateLimited failure immediately. This
// policy is held uniformly across all operations.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// ClassOf extracts the error class from err, unwrapping any retry wrapper.
// Returns ErrorClassNetwork for errors that never reached the provider.
func ClassOf(err error) ErrorClass {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Class
	}
	return ErrorClassNetwork
}

// IsRateLimited reports whether err is rooted in an upstream 429.
func IsRateLimited(err error) bool {
	return ClassOf(err) == ErrorClassRateLimit
}
