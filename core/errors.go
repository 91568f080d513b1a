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

import "errors"

// Domain validation errors
var (
	// ErrInvalidAsset indicates an asset failed validation.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrEmptyName indicates the Name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrInvalidLocation indicates coordinates outside the WGS84 range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidImageRecord indicates an image record failed validation.
	ErrInvalidImageRecord = errors.New("invalid image record")

	// ErrEmptyFilename indicates an image record without a filename.
	ErrEmptyFilename = errors.New("filename cannot be empty")
)
