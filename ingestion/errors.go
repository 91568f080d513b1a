package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when an asset repository is not provided.
	ErrRepositoryRequired = errors.New("asset repository required")

	// ErrGeocoderRequired is returned when a geocoder is not provided.
	ErrGeocoderRequired = errors.New("geocoder required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)
