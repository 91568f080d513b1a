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


package badger

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
)

// SimilarityQuery ranks stored assets against the query vector by cosine
// similarity, descending, ties broken by ascending ID. Only assets
// carrying an embedding of the requested modality are candidates; the
// scan walks that modality's vector keys, so assets without one never
// enter scoring. Matches carry records without embeddings.
func (r *AssetRepository) SimilarityQuery(ctx context.Context, query []float32, opts storage.QueryOptions) ([]core.Match, error) {
	if err := r.checkDimension(query); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if opts.Modality != core.ModalityText && opts.Modality != core.ModalityImage {
		return nil, fmt.Errorf("%w: unknown modality %d", storage.ErrInvalidQuery, opts.Modality)
	}

	var results []core.Match
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(vectorPrefix(opts.Modality) + ":")
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id, err := keyAssetID(iter.Item().Key())
			if err != nil {
				return err
			}

			var vec []float32
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				vec, unmarshalErr = storage.UnmarshalVector(val)
				return unmarshalErr
			}); err != nil {
				return err
			}

			asset, err := readAsset(tx, makeAssetKey(id))
			if err != nil {
				return err
			}
			if asset == nil {
				continue
			}

			if opts.Within != nil {
				if asset.Location == nil {
					continue
				}
				if opts.Within.Center.DistanceKM(*asset.Location) > opts.Within.RadiusKM {
					continue
				}
			}

			results = append(results, core.Match{
				Asset: asset,
				Score: cosineSimilarity(query, vec),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Highest score first; equal scores resolve to the older asset.
	slices.SortFunc(results, func(a, b core.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Asset.Id < b.Asset.Id {
			return -1
		}
		if a.Asset.Id > b.Asset.Id {
			return 1
		}
		return 0
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors,
// equal to 1 minus the cosine distance. Vectors are not assumed to be
// normalized. Zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
