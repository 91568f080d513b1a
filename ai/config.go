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

import (
	"errors"
	"strings"
)

// DefaultDimension is the embedding dimension assumed when none is
// configured. It matches the MiniLM/CLIP-class models the system was
// built against.
const DefaultDimension = 384

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	EmbeddingHost string

	// VisionHost is the base URL for the vision chat service used for
	// image tagging.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	VisionHost string

	// EmbeddingModel is the model identifier for text and image embeddings.
	// The model must produce vectors of Dimension for both modalities.
	// Example: "clip-vit-b-32", "jina-clip-v1"
	EmbeddingModel string

	// VisionModel is the model identifier for image tagging.
	// Example: "qwen2.5vl:7b", "gpt-4o-mini"
	VisionModel string

	// Dimension is the embedding vector length, fixed system-wide and
	// identical for text and image embeddings. Default: 384
	Dimension int

	// MinConfidence is the confidence floor (0-1) for generated tags.
	// Tags the model reports below this value are discarded.
	// Default: 0.5
	MinConfidence float64

	// MaxTags caps how many tags a single image can contribute.
	// Default: 8
	MaxTags int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithVisionHost sets the vision service host URL.
func WithVisionHost(host string) ConfigOption {
	return func(c *Config) {
		c.VisionHost = host
	}
}

// WithHost sets both embedding and vision hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.VisionHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithVisionModel sets the vision model identifier.
func WithVisionModel(model string) ConfigOption {
	return func(c *Config) {
		c.VisionModel = model
	}
}

// WithDimension sets the embedding dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithMinConfidence sets the confidence floor for generated tags.
func WithMinConfidence(min float64) ConfigOption {
	return func(c *Config) {
		c.MinConfidence = min
	}
}

// WithMaxTags sets the per-image tag cap.
func WithMaxTags(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTags = n
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services. By default, embedding and vision use the
// same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		VisionHost:     defaultHost,
		EmbeddingModel: "clip-vit-b-32",
		VisionModel:    "qwen2.5vl:7b",
		Dimension:      DefaultDimension,
		MinConfidence:  0.5,
		MaxTags:        8,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("jina-clip-v1"),
//	    WithDimension(768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, Infinity, etc).
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.VisionHost != "" && !strings.HasSuffix(c.VisionHost, "/v1") {
		c.VisionHost = strings.TrimSuffix(c.VisionHost, "/")
		c.VisionHost = c.VisionHost + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.VisionHost == "" {
		return errors.New("ai config: VisionHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.VisionModel == "" {
		return errors.New("ai config: VisionModel is required")
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be positive")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("ai config: MinConfidence must be between 0 and 1")
	}
	if c.MaxTags < 1 {
		return errors.New("ai config: MaxTags must be at least 1")
	}
	return nil
}
