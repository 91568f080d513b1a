package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
)

// Stats summarizes the store's contents with a single pass over the
// asset records.
func (r *AssetRepository) Stats(ctx context.Context) (*core.StoreStats, error) {
	stats := &core.StoreStats{ByCategory: make(map[string]int)}
	tagSet := make(map[string]struct{})

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(assetRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var asset *core.Asset
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				asset, unmarshalErr = storage.UnmarshalAsset(val)
				return unmarshalErr
			}); err != nil {
				return err
			}

			stats.TotalAssets++

			category := asset.Category
			if category == "" {
				category = "uncategorized"
			}
			stats.ByCategory[category]++

			if len(asset.Images) > 0 {
				stats.WithImages++
			}
			if asset.Location != nil {
				stats.WithLocation++
			}
			for _, tag := range asset.Tags {
				tagSet[tag] = struct{}{}
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	stats.UniqueTags = len(tagSet)
	return stats, nil
}
