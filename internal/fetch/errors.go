package fetch

import (
	"errors"
	"fmt"
	"time"
)

// NetworkError wraps connection and timeout failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. RetryAfter carries a server-supplied
// reset hint when one was present (429 with Retry-After).
type HTTPError struct {
	Status     int
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string { return fmt.Sprintf("http status %d", e.Status) }

// DecodingError is an unsupported Content-Encoding. Fatal for the fetch.
type DecodingError struct {
	Encoding string
	Err      error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("cannot decode content-encoding %q: %v", e.Encoding, e.Err)
}
func (e *DecodingError) Unwrap() error { return e.Err }

// Specific upstream sites return these transiently, so they are worth a
// bounded retry even though most are permanent elsewhere.
var retriableStatuses = map[int]bool{
	503: true,
	409: true,
	404: true,
	429: true,
}

// IsRetriable reports whether err is worth another attempt.
func IsRetriable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return retriableStatuses[he.Status]
	}
	return false
}
