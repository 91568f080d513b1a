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


package openai

import (
	"log/slog"

	"github.com/ffirst2551/mercil/ai"
)

// Provider bundles the embedder and tagger built against one
// OpenAI-compatible endpoint, satisfying ai.AIProvider.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	tagger   *Tagger
	logger   *slog.Logger
}

// NewProvider validates and normalizes the config, then constructs the
// embedding and tagging services over it.
//
// The return type is the ai.AIProvider interface rather than *Provider,
// so callers cannot grow a dependency on OpenAI-specific details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	tagger, err := newTagger(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:   config,
		embedder: embedder,
		tagger:   tagger,
		logger:   slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Tagger returns the image labeling service.
func (p *Provider) Tagger() ai.Tagger {
	return p.tagger
}

// Close releases resources held by the provider. The underlying HTTP
// clients need no explicit cleanup, so today this only logs.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
