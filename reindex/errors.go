package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts rejects a retry budget of zero or fewer attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
