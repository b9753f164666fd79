package types

import "errors"

var (
	// ErrConfiguration means a required credential or setting is missing.
	ErrConfiguration = errors.New("required configuration is missing")
	// ErrServiceUnavailable covers transport, auth and quota failures of an external service.
	ErrServiceUnavailable = errors.New("external service unavailable")
	// ErrNoMatch is returned by a lookup that completed but found nothing.
	ErrNoMatch = errors.New("no match")
	// ErrMalformedResponse means an external service answered with something unparseable.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrExtractionFailed wraps every failure of the extraction stage.
	ErrExtractionFailed = errors.New("location extraction failed")

	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("requested item not found")
	ErrStaleRoute     = errors.New("route references places that no longer exist")
	ErrPlanInProgress = errors.New("a route is already being planned")
)

// IsRetryable reports whether err is worth retrying later without changing configuration.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
