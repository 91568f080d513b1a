// Copyright 2025 Mercil Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"

	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
)

const (
	// DefaultBatchSize is the default number of assets fetched per batch
	DefaultBatchSize = 100
)

// AssetIterator walks the asset store in ascending ID order using keyset
// pagination, so memory stays bounded no matter how large the store is.
type AssetIterator struct {
	repo      storage.AssetRepository
	batchSize int
}

// NewAssetIterator creates an iterator that fetches batchSize assets per
// page. A batchSize <= 0 falls back to DefaultBatchSize.
func NewAssetIterator(repo storage.AssetRepository, batchSize int) *AssetIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &AssetIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn once per batch for every asset with ID greater than
// afterID. Iteration stops on the first error from fn or when the store
// is exhausted. Context cancellation is checked between batches.
func (it *AssetIterator) ForEach(ctx context.Context, afterID core.ID, fn func([]*core.Asset) error) error {
	after := afterID
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.repo.List(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		// A short page means the store is exhausted; a full one may be.
		after = batch[len(batch)-1].Id
		if len(batch) < it.batchSize {
			return nil
		}
	}
}
