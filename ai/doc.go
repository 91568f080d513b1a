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


// Package ai defines the model services Mercil is built on.
//
// Everything above storage talks to two small interfaces: an Embedder
// that maps text and images into one shared vector space, and a Tagger
// that labels images. Callers hold these interfaces, never a concrete
// client, so the engine and the services built on it stay independent
// of any particular model vendor.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings from text and from images
//   - Tagger: Produces descriptive labels for images
//   - AIProvider: Aggregates AI services for convenient initialization
//
// Text and image embeddings must come from one multimodal model family
// (CLIP-class) so that a text query can rank image embeddings and vice
// versa. The vector dimension is fixed system-wide through Config.
//
// # Implementation Packages
//
// The ai package includes two implementation sub-packages:
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Production constructors such as openai.NewProvider hand back the
// interface, which keeps callers from reaching into vendor-specific
// state:
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// The mock constructors deliberately do the opposite and return the
// concrete type, because tests want at the knobs: the injectable
// function fields, CallCount, Reset.
//
//	mockEmbed := mock.NewMockEmbedder()  // returns *mock.MockEmbedder
//	mockEmbed.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{1, 0, 0}, nil
//	}
//	count := mockEmbed.CallCount()
//
// # Usage Example
//
//	// Production usage with OpenAI-compatible provider
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "emergency shelter with beds")
//	tags, err := provider.Tagger().TagImage(ctx, imageBytes, "image/jpeg")
//
//	// Testing usage with mocks
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test text")
package ai
