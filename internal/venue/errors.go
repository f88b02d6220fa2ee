package venue

import (
	"context"
	"errors"
	"fmt"

	"fundsync/internal/model"
)

// APIError is returned when a venue request succeeds at the transport layer
// but reports failure, or returns no payload when one is required.
type APIError struct {
	Venue    model.VenueCode
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error on %s (code %d): %s", e.Venue, e.Endpoint, e.Code, e.Message)
}

// ErrEmptyResult is returned when a payload is valid but empty where one
// funding observation was expected.
var ErrEmptyResult = errors.New("venue returned empty result")

// IsRetryable reports whether an error is transient and worth retrying.
// Empty results and cancellation are not; venue API errors and transport
// errors are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResult) {
		return false
	}
	return true
}
