package llm

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// RateLimitError indicates a provider (or the local rate limiter) refused
// a request because a limit was hit. RetryAfter is how long to wait before
// the next attempt; it comes from the provider's Retry-After header when
// available, otherwise from the local window.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ConnectionError indicates a transient provider failure: timeout, network
// error, or rejected credentials. Retryable.
type ConnectionError struct {
	Err      error
	Provider string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a ConnectionError.
func NewConnectionError(provider string, err error) *ConnectionError {
	return &ConnectionError{Err: err, Provider: provider}
}

// Error is a fatal LLM failure: bad request, unsupported model, or any
// provider 4xx other than rate limiting. Never retried.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a fatal LLM error wrapping err.
func NewError(message string, err error) *Error {
	return &Error{Message: message, Err: err}
}

// IsRetryable reports whether err belongs to a retryable category
// (rate limit or connection).
func IsRetryable(err error) bool {
	var rlErr *RateLimitError
	var connErr *ConnectionError
	return errors.As(err, &rlErr) || errors.As(err, &connErr)
}

// retryAfterHint extracts a provider-supplied retry-after duration from err,
// or 0 if none is present.
func retryAfterHint(err error) time.Duration {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter
	}
	return 0
}

// inTaxonomy reports whether err is already one of the LLM error types.
func inTaxonomy(err error) bool {
	var rlErr *RateLimitError
	var connErr *ConnectionError
	var llmErr *Error
	return errors.As(err, &rlErr) || errors.As(err, &connErr) || errors.As(err, &llmErr)
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}
