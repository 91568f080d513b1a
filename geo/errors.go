package geo

import "errors"

var (
	// ErrUnavailable indicates the geocoding service could not be reached
	// or kept failing across retries. Distinct from a no-match, which is a
	// nil location with a nil error.
	ErrUnavailable = errors.New("geocoding service unavailable")
)
