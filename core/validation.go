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


package core

import (
	"fmt"
	"strings"
)

// ValidateNewAsset validates raw ingestion input according to domain rules.
//
// Validation rules:
//   - Name must not be empty or whitespace-only
//
// NOT validated (populated later in the pipeline):
//   - Location (absent until geocoded, may stay absent)
//   - Embeddings (absent until embedded)
func ValidateNewAsset(asset *NewAsset) error {
	if asset == nil {
		return fmt.Errorf("%w: asset is nil", ErrInvalidAsset)
	}

	if strings.TrimSpace(asset.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, ErrEmptyName)
	}

	return nil
}

// ValidateLocation validates that coordinates fall inside the WGS84 range.
func ValidateLocation(loc *Location) error {
	if loc == nil {
		return nil
	}

	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, loc.Latitude)
	}

	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, loc.Longitude)
	}

	return nil
}

// ValidateImageRecord validates an image record before it is appended.
func ValidateImageRecord(img *ImageRecord) error {
	if img == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidImageRecord)
	}

	if img.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidImageRecord, ErrEmptyFilename)
	}

	return nil
}

// EmbeddingText composes the text that feeds the text embedder for an
// asset. Name and description are joined with ". " so that both fields
// contribute to the vector; the rule is fixed because re-embedding must
// reproduce the original composition.
func EmbeddingText(name, description string) string {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if description == "" {
		return name
	}
	return name + ". " + description
}

// UnionTags appends the members of extra that are not already present in
// tags, preserving first-seen order. Tag comparison is exact; callers
// normalize case before storing.
func UnionTags(tags, extra []string) []string {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		seen[t] = struct{}{}
	}
	out := tags
	for _, t := range extra {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
