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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ffirst2551/mercil/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Tagger implements ai.Tagger using OpenAI-compatible vision chat APIs.
type Tagger struct {
	client        llms.Model
	minConfidence float64
	maxTags       int
	logger        *slog.Logger
}

// taggedLabel is an internal type used for JSON unmarshaling.
// It matches the structure expected from the vision model.
type taggedLabel struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// tagResponse is the wrapper structure for the model's JSON response.
type tagResponse struct {
	Tags []taggedLabel `json:"tags"`
}

// newTagger is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTagger(config *ai.Config) (*Tagger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for vision chat
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.VisionHost),
		openai.WithToken("none"),
		openai.WithModel(config.VisionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Tagger{
		client:        client,
		minConfidence: config.MinConfidence,
		maxTags:       config.MaxTags,
		logger:        slog.Default().With("component", "openai-tagger"),
	}, nil
}

// NewTagger creates a new image tagger using the provided configuration.
//
// Returns ai.Tagger interface to enforce abstraction.
func NewTagger(config *ai.Config) (ai.Tagger, error) {
	return newTagger(config)
}

// TagImage classifies raw image bytes into short lowercase labels using a
// vision model. Labels under the confidence floor are discarded, at most
// maxTags survive, highest confidence first.
func (t *Tagger) TagImage(ctx context.Context, data []byte, contentType string) ([]string, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ai.ErrTagging)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(taggingSystemPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(contentType, data),
				llms.TextPart("Tag this image."),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result tagResponse
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := t.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			t.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			t.logger.Debug("no choices returned from model")
			return []string{}, nil
		}

		responseText := repairJSON(stripCodeFences(response.Choices[0].Content))
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			t.logger.Warn("error parsing tagger response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		// Success
		lastErr = nil
		break
	}

	if lastErr != nil {
		t.logger.Error("failed to parse tagger response after retries", "err", lastErr)
		return nil, lastErr
	}

	// Apply the confidence floor, then rank the survivors.
	kept := make([]taggedLabel, 0, len(result.Tags))
	for _, tag := range result.Tags {
		if tag.Confidence >= t.minConfidence {
			kept = append(kept, tag)
		}
	}
	slices.SortFunc(kept, func(a, b taggedLabel) int {
		if a.Confidence == b.Confidence {
			return 0
		}
		if a.Confidence < b.Confidence {
			return 1
		}
		return -1
	})

	labels := make([]string, 0, len(kept))
	seen := make(map[string]struct{}, len(kept))
	for _, tag := range kept {
		label := normalizeLabel(tag.Label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
		if len(labels) == t.maxTags {
			break
		}
	}

	t.logger.Debug("tagged image",
		"total", len(result.Tags),
		"kept", len(labels))

	return labels, nil
}
