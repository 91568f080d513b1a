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


package search

import "errors"

var (
	// ErrInvalidLimit is returned for result limits that are zero or negative.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrEmptyQuery is returned for blank query text or empty query images.
	ErrEmptyQuery = errors.New("empty query")

	// ErrRepositoryRequired is returned when an asset repository is not provided.
	ErrRepositoryRequired = errors.New("asset repository required")

	// ErrStoreRequired is returned when a file store is not provided.
	ErrStoreRequired = errors.New("file store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)
