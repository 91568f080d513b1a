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


package storage

import "errors"

var (
	// ErrNotFound means no asset exists under the given ID.
	ErrNotFound = errors.New("asset not found")

	// ErrDimensionMismatch means a vector's dimension differs from the
	// one the store was opened with. Vectors are never truncated or
	// padded; the operation is rejected outright.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexOutOfRange means an image index falls outside the asset's
	// image list.
	ErrIndexOutOfRange = errors.New("image index out of range")

	// ErrTransactionFailed means a write transaction kept losing
	// conflict races until its retry budget ran out.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInvalidQuery means the similarity query parameters are unusable,
	// a non-positive limit or an empty query vector.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed means a stored record could not be encoded
	// or decoded.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData means a stored value ended mid-record.
	ErrTruncatedData = errors.New("truncated data")
)
