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

	"github.com/dgraph-io/badger/v4"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for
// BadgerDB. A checkpoint is the last asset ID a named maintenance job
// fully processed.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
	}
}

// Close releases resources. The underlying backend is shared and closed
// separately.
func (r *CheckpointRepository) Close() error {
	return nil
}

// SaveCheckpoint records lastID as the resume point for the named job.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, name string, lastID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeCheckpointKey(name), storage.MarshalID(lastID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint retrieves the resume point for the named job.
// The boolean reports whether a checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, name string) (core.ID, bool, error) {
	var (
		lastID core.ID
		found  bool
	)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(name))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var decodeErr error
			lastID, decodeErr = storage.UnmarshalID(val)
			if decodeErr == nil {
				found = true
			}
			return decodeErr
		})
	}, false)

	return lastID, found, err
}

// ClearCheckpoint removes the named job's checkpoint. Clearing a missing
// checkpoint is a no-op.
func (r *CheckpointRepository) ClearCheckpoint(ctx context.Context, name string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
