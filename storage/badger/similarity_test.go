package badger

import (
	"context"
	"testing"

	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityQuery_RanksByCosine(t *testing.T) {
	repo := setupAssetRepo(t)
	ctx := context.Background()

	exact := mustInsert(t, repo, &core.Asset{Name: "Exact", TextEmbedding: []float32{1, 0, 0}})
	close_ := mustInsert(t, repo, &core.Asset{Name: "Close", TextEmbedding: []float32{0.9, 0.1, 0}})
	ortho := mustInsert(t, repo, &core.Asset{Name: "Orthogonal", TextEmbedding: []float32{0, 0, 1}})

	matches, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
		Limit:    10,
		Modality: core.ModalityText,
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, exact, matches[0].Asset.Id)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, close_, matches[1].Asset.Id)
	assert.Equal(t, ortho, matches[2].Asset.Id)
	assert.InDelta(t, 0.0, matches[2].Score, 1e-6)

	for i := 0; i < len(matches)-1; i++ {
		assert.GreaterOrEqual(t, matches[i].Score, matches[i+1].Score)
	}
}

func TestSimilarityQuery_MagnitudeInvariant(t *testing.T) {
	repo := setupAssetRepo(t)
	ctx := context.Background()

	// Cosine similarity ignores vector magnitude.
	id := mustInsert(t, repo, &core.Asset{Name: "Scaled", TextEmbedding: []float32{5, 0, 0}})

	matches, err := repo.SimilarityQuery(ctx, []float32{0.2, 0, 0}, storage.QueryOptions{
		Limit:    1,
		Modality: core.ModalityText,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Asset.Id)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestSimilarityQuery_TieBreakByAscendingID(t *testing.T) {
	repo := setupAssetRepo(t)
	ctx := context.Background()

	first := mustInsert(t, repo, &core.Asset{Name: "First", TextEmbedding: []float32{1, 0, 0}})
	second := mustInsert(t, repo, &core.Asset{Name: "Second", TextEmbedding: []float32{1, 0, 0}})
	third := mustInsert(t, repo, &core.Asset{Name: "Third", TextEmbedding: []float32{2, 0, 0}})

	matches, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
		Limit:    10,
		Modality: core.ModalityText,
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// All three score 1.0; order falls back to insertion order.
	assert.Equal(t, first, matches[0].Asset.Id)
	assert.Equal(t, second, matches[1].Asset.Id)
	assert.Equal(t, third, matches[2].Asset.Id)
}

func TestSimilarityQuery_ModalityExclusion(t *testing.T) {
	repo := setupAssetRepo(t)
	ctx := context.Background()

	textOnly := mustInsert(t, repo, &core.Asset{Name: "Text only", TextEmbedding: []float32{1, 0, 0}})
	both := mustInsert(t, repo, &core.Asset{
		Name:           "Both",
		TextEmbedding:  []float32{0.5, 0.5, 0},
		ImageEmbedding: []float32{1, 0, 0},
	})

	t.Run("image modality excludes text-only assets", func(t *testing.T) {
		matches, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
			Limit:    10,
			Modality: core.ModalityImage,
		})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, both, matches[0].Asset.Id)
	})

	t.Run("text modality sees both", func(t *testing.T) {
		matches, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
			Limit:    10,
			Modality: core.ModalityText,
		})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, textOnly, matches[0].Asset.Id)
	})
}

func TestSimilarityQuery_GeoFilter(t *testing.T) {
	repo := setupAssetRepo(t)
	ctx := context.Background()

	sacramento := core.Location{Latitude: 38.5816, Longitude: -121.4944}
	davis := core.Location{Latitude: 38.5449, Longitude: -121.7405}  // ~22 km away
	newYork := core.Location{Latitude: 40.7128, Longitude: -74.0060} // ~4000 km away

	near := mustInsert(t, repo, &core.Asset{Name: "Near", Location: &davis, TextEmbedding: []float32{1, 0, 0}})
	mustInsert(t, repo, &core.Asset{Name: "Far", Location: &newYork, TextEmbedding: []float32{1, 0, 0}})
	mustInsert(t, repo, &core.Asset{Name: "Nowhere", TextEmbedding: []float32{1, 0, 0}})

	matches, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
		Limit:    10,
		Modality: core.ModalityText,
		Within:   &storage.GeoFilter{Center: sacramento, RadiusKM: 50},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, near, matches[0].Asset.Id)
}

func TestSimilarityQuery_Limit(t *testing.T) {
	repo := setupAssetRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustInsert(t, repo, &core.Asset{Name: "Asset", TextEmbedding: []float32{1, 0, 0}})
	}

	matches, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
		Limit:    2,
		Modality: core.ModalityText,
	})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSimilarityQuery_EmptyStore(t *testing.T) {
	repo := setupAssetRepo(t)

	matches, err := repo.SimilarityQuery(context.Background(), []float32{1, 0, 0}, storage.QueryOptions{
		Limit:    10,
		Modality: core.ModalityText,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSimilarityQuery_InvalidInput(t *testing.T) {
	repo := setupAssetRepo(t)
	ctx := context.Background()

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := repo.SimilarityQuery(ctx, []float32{1, 0}, storage.QueryOptions{
			Limit:    10,
			Modality: core.ModalityText,
		})
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})

	t.Run("zero limit", func(t *testing.T) {
		_, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
			Modality: core.ModalityText,
		})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("missing modality", func(t *testing.T) {
		_, err := repo.SimilarityQuery(ctx, []float32{1, 0, 0}, storage.QueryOptions{
			Limit: 10,
		})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "unnormalized parallel vectors",
			a:        []float32{3.0, 0.0},
			b:        []float32{0.5, 0.0},
			expected: 1.0,
		},
		{
			name:     "general case",
			a:        []float32{0.6, 0.8},
			b:        []float32{0.8, 0.6},
			expected: 0.96,
		},
		{
			name:     "zero vector",
			a:        []float32{0.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}
