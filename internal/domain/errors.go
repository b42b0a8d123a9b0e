package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed marks a failed credential exchange, or a request that
	// stayed unauthorized after a token refresh.
	ErrAuthFailed = errors.New("upstream authentication failed")

	// ErrInvalidDateFormat marks a date string that is not yyyy-MM-dd.
	ErrInvalidDateFormat = errors.New("invalid date format, expected yyyy-MM-dd")

	// ErrInvalidMonth marks a month outside 1-12.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
)

// HTTPError reports an unexpected non-success status from the upstream API.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Status)
}

// NetworkError wraps a transport-level failure such as a timeout or a
// connection reset.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
