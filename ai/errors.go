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


package ai

import "errors"

var (
	// ErrEmbedding indicates the embedder was given input it cannot embed:
	// empty text, empty image data, or an undecodable image. Batch callers
	// skip the offending item; the error is never retried.
	ErrEmbedding = errors.New("embedding input error")

	// ErrTagging indicates the tagger was given input it cannot label,
	// such as empty image data.
	ErrTagging = errors.New("tagging input error")
)
