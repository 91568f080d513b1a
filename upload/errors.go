package upload

import "errors"

var (
	// ErrInvalidImage indicates upload bytes that do not decode as a
	// supported image format.
	ErrInvalidImage = errors.New("invalid image data")

	// ErrNotStored indicates a URL that does not reference a file managed
	// by this store.
	ErrNotStored = errors.New("file not managed by this store")

	// ErrRepositoryRequired is returned when an asset repository is not provided.
	ErrRepositoryRequired = errors.New("asset repository required")

	// ErrStoreRequired is returned when a file store is not provided.
	ErrStoreRequired = errors.New("file store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)
