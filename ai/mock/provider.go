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


package mock

import "github.com/ffirst2551/mercil/ai"

// MockProvider pairs a MockEmbedder with a MockTagger behind the
// ai.AIProvider interface.
type MockProvider struct {
	embedder *MockEmbedder
	tagger   *MockTagger
}

// NewMockProvider creates a mock provider around freshly constructed
// default mocks.
//
// Like the production constructors it returns the interface; tests that
// need the concrete mocks go through GetMockEmbedder/GetMockTagger.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		tagger:   NewMockTagger(),
	}
}

// NewMockProviderWithServices creates a mock provider around mocks the
// test configured itself.
func NewMockProviderWithServices(embedder *MockEmbedder, tagger *MockTagger) ai.AIProvider {
	return &MockProvider{
		embedder: embedder,
		tagger:   tagger,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Tagger returns the mock tagger.
func (p *MockProvider) Tagger() ai.Tagger {
	return p.tagger
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder exposes the concrete embedder so tests can read call
// counts or swap in behavior.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockTagger exposes the concrete tagger so tests can read call
// counts or swap in behavior.
func (p *MockProvider) GetMockTagger() *MockTagger {
	return p.tagger
}
