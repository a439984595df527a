package rest

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the failure kinds a request can surface. Match with
// errors.Is; the concrete types below carry the detail.
var (
	// ErrValidation marks caller contract violations detected before any
	// network work. Never delivered through the async failure channel.
	ErrValidation = errors.New("validation")

	// ErrCanceled completes futures whose request was canceled.
	ErrCanceled = errors.New("canceled")

	// ErrRateLimited marks a 429 response.
	ErrRateLimited = errors.New("rate limited")

	// ErrResponse marks any other non-2xx response.
	ErrResponse = errors.New("error response")
)

// APIError is a non-2xx, non-429 response. Code and Message come from the
// server's error envelope when the body parses; Response always carries the
// raw exchange for diagnostics.
type APIError struct {
	Status   int
	Code     string
	Message  string
	Response *Response
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

func (e *APIError) Unwrap() error { return ErrResponse }

// newAPIError builds an APIError from a response, pulling code/message out
// of the standard {"error":{"code","message"}} envelope when present.
func newAPIError(resp *Response) *APIError {
	e := &APIError{Status: resp.Status, Response: resp}
	if obj, ok := resp.Object(); ok {
		if detail, err := obj.GetObject("error"); err == nil {
			e.Code, _ = detail.GetString("code")
			e.Message, _ = detail.GetString("message")
		}
	}
	return e
}

// RateLimitError is a 429 response with the server-provided backoff.
type RateLimitError struct {
	RetryAfter time.Duration
	Response   *Response
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Validationf builds a synchronous input-validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
