package clients

import (
	"errors"
	"fmt"
)

// Client errors are infrastructure failures; callers translate them into
// domain errors.
var (
	// ErrCircuitOpen is returned without contacting the service while the
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last failure once every attempt is spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrTooLarge is returned when a response body exceeds the configured size.
	ErrTooLarge = errors.New("response body too large")
)

// StatusError reports a non-2xx response that was not retried.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}
