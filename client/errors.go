package client

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a package, version or page is not found.
var ErrNotFound = errors.New("not found")

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *HTTPError) Unwrap() error {
	if e.IsNotFound() {
		return ErrNotFound
	}
	return nil
}

// RateLimitError is returned when the upstream rate limits requests and
// all retry attempts were exhausted.
type RateLimitError struct {
	URL        string
	RetryAfter int // seconds, 0 if the server sent no hint
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited fetching %s, retry after %d seconds", e.URL, e.RetryAfter)
}
