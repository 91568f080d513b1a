// Package mock supplies offline stand-ins for the ai interfaces, so unit
// tests never talk to a model server.
//
// Out of the box every mock is deterministic:
//
//   - MockEmbedder hashes its input bytes into a vector, so the same text
//     or image always embeds to the same point
//   - MockTagger picks labels from the shared tag vocabulary based on a
//     hash of the image bytes
//   - MockProvider bundles the two behind ai.AIProvider
//
// Tests that need specific behavior assign the function fields:
//
//	mockEmbedder := mock.NewMockEmbedder()
//	mockEmbedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//	count := mockEmbedder.CallCount()
//
// Call counts are tracked atomically, so mocks are safe to share across
// goroutines in concurrent pipeline tests.
package mock
