package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
)

// AssetRepository implements storage.AssetRepository for BadgerDB.
type AssetRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.AssetRepository = (*AssetRepository)(nil)

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(backend *Backend) (*AssetRepository, error) {
	idSeq, err := backend.GetSequence(assetIDSeq)
	if err != nil {
		return nil, err
	}

	return &AssetRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *AssetRepository) Close() error {
	return r.idSeq.Release()
}

// Insert adds an asset to storage and returns its assigned ID.
func (r *AssetRepository) Insert(ctx context.Context, asset *core.Asset) (core.ID, error) {
	if asset.TextEmbedding != nil {
		if err := r.checkDimension(asset.TextEmbedding); err != nil {
			return 0, err
		}
	}
	if asset.ImageEmbedding != nil {
		if err := r.checkDimension(asset.ImageEmbedding); err != nil {
			return 0, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		asset.Id = core.ID(nextID)

		if asset.CreatedAt.IsZero() {
			asset.CreatedAt = time.Now().UTC()
		}

		if err := writeAsset(tx, asset); err != nil {
			return err
		}

		if asset.TextEmbedding != nil {
			if err := tx.Set(makeVectorKey(core.ModalityText, asset.Id), storage.MarshalVector(asset.TextEmbedding)); err != nil {
				return err
			}
		}
		if asset.ImageEmbedding != nil {
			if err := tx.Set(makeVectorKey(core.ModalityImage, asset.Id), storage.MarshalVector(asset.ImageEmbedding)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return asset.Id, nil
}

// Get retrieves a single asset by ID, embeddings included.
func (r *AssetRepository) Get(ctx context.Context, id core.ID) (*core.Asset, error) {
	var result *core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		asset, err := readAsset(tx, makeAssetKey(id))
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}

		if asset.TextEmbedding, err = readVector(tx, makeVectorKey(core.ModalityText, id)); err != nil {
			return err
		}
		if asset.ImageEmbedding, err = readVector(tx, makeVectorKey(core.ModalityImage, id)); err != nil {
			return err
		}

		result = asset
		return nil
	}, false)
	return result, err
}

// GetImages retrieves the image listing view of an asset.
func (r *AssetRepository) GetImages(ctx context.Context, id core.ID) (*core.AssetImages, error) {
	var result *core.AssetImages
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		asset, err := readAsset(tx, makeAssetKey(id))
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}

		result = &core.AssetImages{
			Id:     asset.Id,
			Name:   asset.Name,
			Images: asset.Images,
			Tags:   asset.Tags,
		}
		return nil
	}, false)
	return result, err
}

// AppendImage atomically appends an image record, unions tags, and
// replaces the image embedding when a non-nil one is supplied. Concurrent
// mutations of the same asset serialize through conflict retry.
func (r *AssetRepository) AppendImage(ctx context.Context, id core.ID, img core.ImageRecord, tags []string, imageEmbedding []float32) (*core.ImageCounts, error) {
	if err := core.ValidateImageRecord(&img); err != nil {
		return nil, err
	}
	if imageEmbedding != nil {
		if err := r.checkDimension(imageEmbedding); err != nil {
			return nil, err
		}
	}

	var counts *core.ImageCounts
	err := r.backend.WithTxRetry(func(tx *badger.Txn) error {
		asset, err := readAsset(tx, makeAssetKey(id))
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}

		asset.Images = append(asset.Images, img)
		asset.Tags = core.UnionTags(asset.Tags, tags)

		if err := writeAsset(tx, asset); err != nil {
			return err
		}

		// A nil embedding never clears the stored one.
		if imageEmbedding != nil {
			if err := tx.Set(makeVectorKey(core.ModalityImage, id), storage.MarshalVector(imageEmbedding)); err != nil {
				return err
			}
		}

		counts = &core.ImageCounts{
			Id:         asset.Id,
			ImageCount: len(asset.Images),
			TagCount:   len(asset.Tags),
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// RemoveImageAt atomically removes the image at the given position,
// returning the removed record and the remaining count.
func (r *AssetRepository) RemoveImageAt(ctx context.Context, id core.ID, index int) (*core.ImageRecord, int, error) {
	var (
		removed   core.ImageRecord
		remaining int
	)
	err := r.backend.WithTxRetry(func(tx *badger.Txn) error {
		asset, err := readAsset(tx, makeAssetKey(id))
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}
		if index < 0 || index >= len(asset.Images) {
			return fmt.Errorf("%w: index %d with %d images", storage.ErrIndexOutOfRange, index, len(asset.Images))
		}

		removed = asset.Images[index]
		asset.Images = append(asset.Images[:index], asset.Images[index+1:]...)
		remaining = len(asset.Images)

		if err := writeAsset(tx, asset); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, 0, err
	}
	return &removed, remaining, nil
}

// UpdateTextEmbedding replaces an asset's text embedding.
func (r *AssetRepository) UpdateTextEmbedding(ctx context.Context, id core.ID, embedding []float32) error {
	if err := r.checkDimension(embedding); err != nil {
		return err
	}

	return r.backend.WithTxRetry(func(tx *badger.Txn) error {
		asset, err := readAsset(tx, makeAssetKey(id))
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}

		if err := tx.Set(makeVectorKey(core.ModalityText, id), storage.MarshalVector(embedding)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// UpdateLocation sets or clears an asset's location.
func (r *AssetRepository) UpdateLocation(ctx context.Context, id core.ID, loc *core.Location) error {
	if loc != nil {
		if err := core.ValidateLocation(loc); err != nil {
			return err
		}
	}

	return r.backend.WithTxRetry(func(tx *badger.Txn) error {
		asset, err := readAsset(tx, makeAssetKey(id))
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}

		asset.Location = loc
		if err := writeAsset(tx, asset); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// List retrieves up to limit assets with ID > afterID in ascending ID
// order. Returned records carry no embeddings.
func (r *AssetRepository) List(ctx context.Context, afterID core.ID, limit int) ([]*core.Asset, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(assetRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeAssetKey(afterID)); iter.Valid() && len(results) < limit; iter.Next() {
			id, err := keyAssetID(iter.Item().Key())
			if err != nil {
				return err
			}
			if id <= afterID {
				continue
			}

			var asset *core.Asset
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				asset, unmarshalErr = storage.UnmarshalAsset(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			results = append(results, asset)
		}
		return nil
	}, false)
	return results, err
}

// Helper methods

// checkDimension rejects vectors whose size differs from the store's
// stamped dimension.
func (r *AssetRepository) checkDimension(vec []float32) error {
	if len(vec) != r.backend.Dimension() {
		return fmt.Errorf("%w: got %d, store dimension %d",
			storage.ErrDimensionMismatch, len(vec), r.backend.Dimension())
	}
	return nil
}

// writeAsset serializes and stores an asset record under its record key.
func writeAsset(tx *badger.Txn, asset *core.Asset) error {
	value, err := storage.MarshalAsset(asset)
	if err != nil {
		return err
	}
	return tx.Set(makeAssetKey(asset.Id), value)
}

// readAsset reads an asset record from the transaction.
// Returns nil, nil when the record does not exist.
func readAsset(tx *badger.Txn, key []byte) (*core.Asset, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var asset *core.Asset
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		asset, unmarshalErr = storage.UnmarshalAsset(val)
		return unmarshalErr
	})
	return asset, err
}

// readVector reads an embedding from the transaction.
// Returns nil, nil when the key does not exist.
func readVector(tx *badger.Txn, key []byte) ([]float32, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var vec []float32
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		vec, unmarshalErr = storage.UnmarshalVector(val)
		return unmarshalErr
	})
	return vec, err
}
