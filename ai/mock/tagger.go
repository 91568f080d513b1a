package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/ffirst2551/mercil/ai"
)

// MockTagger is a test double for ai.Tagger.
// It allows custom behavior injection via function fields.
type MockTagger struct {
	// TagImageFunc is called by TagImage if set.
	// If nil, uses default deterministic behavior.
	TagImageFunc func(ctx context.Context, data []byte, contentType string) ([]string, error)

	callCount atomic.Int64
}

var _ ai.Tagger = (*MockTagger)(nil)

// NewMockTagger creates a mock tagger with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockTagger() *MockTagger {
	return &MockTagger{}
}

// TagImage produces deterministic labels drawn from ai.TagExamples based on
// the image bytes, so the same bytes always yield the same labels.
func (m *MockTagger) TagImage(ctx context.Context, data []byte, contentType string) ([]string, error) {
	m.callCount.Add(1)

	if m.TagImageFunc != nil {
		return m.TagImageFunc(ctx, data, contentType)
	}

	if len(data) == 0 {
		return []string{}, nil
	}

	h := fnv.New32a()
	h.Write(data)
	seed := h.Sum32()

	first := ai.TagExamples[seed%uint32(len(ai.TagExamples))]
	second := ai.TagExamples[(seed/7)%uint32(len(ai.TagExamples))]
	if second == first {
		return []string{first}, nil
	}
	return []string{first, second}, nil
}

// CallCount returns the number of times TagImage was called.
func (m *MockTagger) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockTagger) Reset() {
	m.callCount.Store(0)
	m.TagImageFunc = nil
}
