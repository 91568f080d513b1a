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

import "github.com/ffirst2551/mercil/storage"

// NewMemoryRepositories creates in-memory asset and checkpoint
// repositories with the given embedding dimension for testing.
// Returns assetRepo, checkpointRepo, backend, and error.
// Caller must close the asset repo and backend when done.
func NewMemoryRepositories(dimension int) (storage.AssetRepository, storage.CheckpointRepository, *Backend, error) {
	backend, err := OpenBackend("", dimension, true)
	if err != nil {
		return nil, nil, nil, err
	}

	assetRepo, err := NewAssetRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	checkpointRepo := NewCheckpointRepository(backend)

	return assetRepo, checkpointRepo, backend, nil
}
