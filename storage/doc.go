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


// Package storage declares what mercil expects from a persistence
// backend, keeping the services above it indifferent to whether assets
// live in BadgerDB or in PostgreSQL with pgvector.
//
// # Architecture
//
// Two repository interfaces cover everything:
//
//   - AssetRepository: asset records, image list mutations, embedding
//     updates, similarity queries, keyset listing, stats
//   - CheckpointRepository: resume points for maintenance jobs
//
// Both backends rank similarity identically: cosine similarity
// (1 - cosine distance), highest first, ties broken by ascending ID.
// A query only considers assets carrying an embedding of the requested
// modality.
//
// # Atomicity
//
// Image list mutations (AppendImage, RemoveImageAt) are atomic
// read-modify-write operations inside the store. The badger backend
// serializes them through transaction conflict retry; the postgres
// backend through row locks. Callers never load-then-store image lists
// themselves.
//
// # Usage
//
// Open a persistent store:
//
//	backend, err := badger.OpenBackend("/path/to/db", 384, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	repo, err := badger.NewAssetRepository(backend)
//
// Or an in-memory one for tests:
//
//	assets, checkpoints, backend, err := badger.NewMemoryRepositories(384)
//
// Implementations are safe for concurrent use, and every method takes a
// context.Context for cancellation.
package storage
