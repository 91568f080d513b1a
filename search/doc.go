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


// Package search answers text and image queries over stored assets.
//
// The Searcher type supports two entry points into one vector space:
//   - SearchText embeds the query text and ranks assets by their
//     text-embedding similarity
//   - SearchImage embeds and tags the query image in parallel, ranks
//     assets by their image-embedding similarity, and reports the tags it
//     detected on the query
//
// Scores are cosine similarity (1 - cosine distance), ranked descending
// with ties broken by ascending asset id. Assets without an embedding of
// the queried modality never appear in results. Both entry points accept
// WithinKM to narrow candidates to a geographic radius before ranking.
//
// Query images are written to a scoped temporary file for the duration of
// the call and removed on every exit path. A Monitor can be attached to
// observe query durations and result counts.
package search
