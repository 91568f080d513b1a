package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/ffirst2551/mercil/ai"
)

// MockEmbedder is a test double for ai.Embedder. Each method defers to
// its function field when one is set; otherwise it hashes the input into
// a deterministic vector, so identical inputs always collide in vector
// space and tests can rank by construction.
type MockEmbedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImageFunc func(ctx context.Context, data []byte, contentType string) ([]float32, error)

	dimension int
	callCount atomic.Int64
}

var _ ai.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder producing vectors of the
// default dimension. The concrete type comes back so tests can reach the
// function fields and counters.
func NewMockEmbedder() *MockEmbedder {
	return NewMockEmbedderWithDimension(ai.DefaultDimension)
}

// NewMockEmbedderWithDimension creates a mock embedder producing vectors of
// the given dimension.
func NewMockEmbedderWithDimension(dim int) *MockEmbedder {
	return &MockEmbedder{dimension: dim}
}

// EmbedText generates a deterministic embedding based on the text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}

	return deterministicVector([]byte(text), m.dimension), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = deterministicVector([]byte(text), m.dimension)
	}
	return embeddings, nil
}

// EmbedImage generates a deterministic embedding based on the image bytes,
// so the same bytes always land at the same point in the vector space.
func (m *MockEmbedder) EmbedImage(ctx context.Context, data []byte, contentType string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedImageFunc != nil {
		return m.EmbedImageFunc(ctx, data, contentType)
	}

	return deterministicVector(data, m.dimension), nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
	m.EmbedImageFunc = nil
}

// deterministicVector hashes input with FNV and expands the hash into a
// dim-length vector, so the same bytes always produce the same vector.
func deterministicVector(input []byte, dim int) []float32 {
	h := fnv.New32a()
	h.Write(input)
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // numerical recipes LCG
		vector[i] = float32(seed%1000) / 1000.0
	}

	// Scale down so components stay small; cosine ranking is unaffected
	// by the magnitude.
	var sumSquares float32
	for _, v := range vector {
		sumSquares += v * v
	}
	if sumSquares > 0 {
		norm := float32(1.0) / float32(sumSquares)
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}
