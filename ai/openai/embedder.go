package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ffirst2551/mercil/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder against an OpenAI-compatible embedding
// endpoint. Images travel as base64 data URIs, which CLIP-class embedding
// servers accept through the same route as text, so both modalities land
// in one vector space.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// newEmbedder builds the concrete embedder for the Provider to hold.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Local OpenAI-compatible servers accept any token; "none" keeps the
	// client from demanding a real key.
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates an embedder from the configuration, returned as the
// ai.Embedder interface.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ai.ErrEmbedding)
	}

	e.logger.Debug("embedding text", "length", len(text))
	return e.embedOne(ctx, text)
}

// EmbedTexts generates vector embeddings for a batch of text strings.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", ai.ErrEmbedding, i)
		}
	}

	e.logger.Debug("embedding batch", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("batch embedding failed", "count", len(texts), "err", err)
		return nil, err
	}

	return vectors, nil
}

// EmbedImage generates a vector embedding for raw image bytes by sending
// them to the embedding endpoint as a data URI.
func (e *Embedder) EmbedImage(ctx context.Context, data []byte, contentType string) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ai.ErrEmbedding)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	e.logger.Debug("embedding image", "bytes", len(data), "contentType", contentType)

	uri := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	return e.embedOne(ctx, uri)
}

// embedOne embeds a single document and unwraps the one-element batch the
// client returns. An empty response degrades to an empty vector rather
// than an error.
func (e *Embedder) embedOne(ctx context.Context, doc string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{doc})
	if err != nil {
		e.logger.Error("embedding failed", "err", err)
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedding server returned no vectors")
		return []float32{}, nil
	}
	return vectors[0], nil
}
