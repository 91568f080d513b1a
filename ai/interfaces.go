package ai

import "context"

// Embedder generates fixed-dimension vector embeddings for semantic
// similarity search. Text and image embeddings share one vector space of
// identical dimension, so cross-modal similarity queries are well-defined.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Empty text is rejected with an error wrapping ErrEmbedding.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in
	// a batch. The returned slice contains embeddings in the same order as
	// the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedImage generates a vector embedding for raw image bytes.
	// contentType is the declared MIME type ("image/jpeg" when empty).
	// Empty data is rejected with an error wrapping ErrEmbedding.
	EmbedImage(ctx context.Context, data []byte, contentType string) ([]float32, error)
}

// Tagger produces descriptive labels for an image. An empty result means
// no label cleared the model's confidence floor; that is not an error.
// Callers must treat the output as a set: order carries no meaning.
// Implementations must be thread-safe for concurrent use.
type Tagger interface {
	// TagImage classifies raw image bytes into short lowercase labels.
	TagImage(ctx context.Context, data []byte, contentType string) ([]string, error)
}

// AIProvider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and Tagger
// instances, ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Tagger returns the image labeling service.
	// The returned Tagger is safe for concurrent use.
	Tagger() Tagger

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
