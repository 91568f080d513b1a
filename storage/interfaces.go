package storage

import (
	"context"

	"github.com/ffirst2551/mercil/core"
)

// GeoFilter restricts a similarity query to assets within RadiusKM
// kilometers of Center. Assets without a location never match.
type GeoFilter struct {
	Center   core.Location
	RadiusKM float64
}

// QueryOptions parameterizes a similarity query.
type QueryOptions struct {
	// Limit caps the number of matches returned. Must be positive.
	Limit int

	// Modality selects which embedding of each asset the query ranks on.
	// Assets lacking an embedding of this modality are excluded from the
	// result, never zero-scored.
	Modality core.Modality

	// Within optionally restricts candidates geographically before ranking.
	Within *GeoFilter
}

// AssetRepository provides operations for managing assets.
// Implementations must be thread-safe and support concurrent access.
type AssetRepository interface {
	// Insert adds an asset to storage, assigns its ID from the store's
	// sequence, and persists all fields atomically. Embedding dimensions
	// are validated against the store's dimension before any write.
	// Returns the assigned ID.
	Insert(ctx context.Context, asset *core.Asset) (core.ID, error)

	// Get retrieves a single asset by ID, embeddings included.
	// Returns ErrNotFound if the asset doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.Asset, error)

	// GetImages retrieves the image listing view of an asset.
	// Returns ErrNotFound if the asset doesn't exist.
	GetImages(ctx context.Context, id core.ID) (*core.AssetImages, error)

	// AppendImage atomically appends one image record to an asset, unions
	// tags into the asset's tag set (first-seen order preserved), and
	// replaces the image embedding when a non-nil one is supplied. A nil
	// imageEmbedding never clears an existing one. Concurrent appends and
	// removals on the same asset serialize; no update is lost.
	// Returns ErrNotFound if the asset doesn't exist.
	AppendImage(ctx context.Context, id core.ID, img core.ImageRecord, tags []string, imageEmbedding []float32) (*core.ImageCounts, error)

	// RemoveImageAt atomically removes the image at the given position in
	// the asset's image list. Returns the removed record, so callers can
	// release backing files, and the remaining image count.
	// Returns ErrIndexOutOfRange when index is negative or >= the list
	// length, ErrNotFound when the asset doesn't exist.
	RemoveImageAt(ctx context.Context, id core.ID, index int) (*core.ImageRecord, int, error)

	// SimilarityQuery ranks stored assets against the query vector by
	// cosine similarity (score = 1 - cosine distance), descending, ties
	// broken by ascending ID. The query dimension must equal the store's
	// dimension (ErrDimensionMismatch otherwise).
	SimilarityQuery(ctx context.Context, query []float32, opts QueryOptions) ([]core.Match, error)

	// UpdateTextEmbedding replaces an asset's text embedding, validating
	// its dimension. Returns ErrNotFound if the asset doesn't exist.
	UpdateTextEmbedding(ctx context.Context, id core.ID, embedding []float32) error

	// UpdateLocation sets or replaces an asset's location. A nil location
	// clears it. Returns ErrNotFound if the asset doesn't exist.
	UpdateLocation(ctx context.Context, id core.ID, loc *core.Location) error

	// List retrieves up to limit assets with ID > afterID, ordered by
	// ascending ID. Used for keyset iteration over the whole store;
	// an empty result means the iteration is complete.
	List(ctx context.Context, afterID core.ID, limit int) ([]*core.Asset, error)

	// Stats summarizes the store's contents.
	Stats(ctx context.Context) (*core.StoreStats, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// CheckpointRepository persists resume points for long-running maintenance
// jobs. A checkpoint is the last asset ID a named job fully processed.
type CheckpointRepository interface {
	// SaveCheckpoint records lastID as the resume point for the named job,
	// replacing any previous checkpoint.
	SaveCheckpoint(ctx context.Context, name string, lastID core.ID) error

	// LoadCheckpoint retrieves the resume point for the named job.
	// The boolean reports whether a checkpoint exists; a missing
	// checkpoint is not an error.
	LoadCheckpoint(ctx context.Context, name string) (core.ID, bool, error)

	// ClearCheckpoint removes the named job's checkpoint. Clearing a
	// checkpoint that doesn't exist is a no-op.
	ClearCheckpoint(ctx context.Context, name string) error

	// Close closes the storage backend and releases resources.
	Close() error
}
