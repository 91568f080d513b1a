package mercil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffirst2551/mercil/ai"
	"github.com/ffirst2551/mercil/ai/mock"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/geo"
)

// newTestEngine wires an in-memory engine around mock AI services and a
// fixed-answer geocoder.
func newTestEngine(t *testing.T) (*Engine, *mock.MockEmbedder, *mock.MockTagger) {
	t.Helper()

	embedder := mock.NewMockEmbedderWithDimension(3)
	tagger := mock.NewMockTagger()
	geocoder := geo.GeocoderFunc(func(ctx context.Context, address string) (*core.Location, error) {
		return &core.Location{Latitude: 38.5816, Longitude: -121.4944}, nil
	})

	engine, err := NewEngine(
		Config{
			InMemory:  true,
			UploadDir: t.TempDir(),
			AI:        ai.NewConfig(ai.WithDimension(3)),
		},
		WithProvider(mock.NewMockProviderWithServices(embedder, tagger)),
		WithGeocoder(geocoder),
	)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	return engine, embedder, tagger
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), 0x80, 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewEngine(t *testing.T) {
	t.Run("opens a store on disk with default collaborators", func(t *testing.T) {
		engine, err := NewEngine(Config{
			DBPath:    filepath.Join(t.TempDir(), "db"),
			UploadDir: filepath.Join(t.TempDir(), "uploads"),
		})
		require.NoError(t, err)
		require.NotNil(t, engine)
		defer engine.Close()

		assert.NotNil(t, engine.Repository())
		assert.NotNil(t, engine.Checkpoints())
		assert.NotNil(t, engine.UploadStore())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		engine, err := NewEngine(Config{DBPath: tmpFile})
		assert.Error(t, err)
		assert.Nil(t, engine)
	})
}

func TestEngine_Close(t *testing.T) {
	engine, err := NewEngine(
		Config{InMemory: true, UploadDir: t.TempDir()},
		WithProvider(mock.NewMockProvider()),
	)
	require.NoError(t, err)
	assert.NoError(t, engine.Close())
}

func TestEngine_FactoryMethods(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := engine.NewPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := engine.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create uploader", func(t *testing.T) {
		uploader, err := engine.NewUploader()
		require.NoError(t, err)
		require.NotNil(t, uploader)
	})

	t.Run("can create maintenance jobs", func(t *testing.T) {
		assert.NotNil(t, engine.NewReembedder(nil, io.Discard))
		assert.NotNil(t, engine.NewRegeocoder(nil, io.Discard))
	})
}

// TestEngine_Lifecycle runs a whole asset's journey through one engine:
// ingest, upload with auto-tagging, query by text and by image,
// maintenance, removal.
func TestEngine_Lifecycle(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	pipeline, err := engine.NewPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	report, err := pipeline.Run(ctx, []core.NewAsset{
		{Name: "Central Shelter", Description: "Emergency housing downtown", Address: "123 Main St, Sacramento"},
		{Name: "Supply Depot", Description: "Bottled water and blankets"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, report.Stored)
	assert.Equal(t, 1, report.Located)

	var depotID core.ID
	for _, outcome := range report.Outcomes {
		if outcome.Name == "Supply Depot" {
			depotID = outcome.ID
		}
	}
	require.NotZero(t, depotID)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAssets)
	assert.Equal(t, 1, stats.WithLocation)
	assert.Zero(t, stats.WithImages)

	// Querying with the exact embedding text puts that asset first with a
	// perfect score, since the mock embedder is deterministic.
	searcher, err := engine.NewSearcher()
	require.NoError(t, err)

	matches, err := searcher.SearchText(ctx, core.EmbeddingText("Central Shelter", "Emergency housing downtown"), 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Central Shelter", matches[0].Asset.Name)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	// Attach a photo to the depot; auto-tagging gives it an image
	// embedding and generated tags.
	uploader, err := engine.NewUploader()
	require.NoError(t, err)

	photo := pngBytes(t)
	receipt, err := uploader.Attach(ctx, depotID, photo, "depot.png", "image/png", "pallets of water", true)
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Counts.ImageCount)
	assert.NotEmpty(t, receipt.Tags)

	stats, err = engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.WithImages)

	// Searching with the very same photo ranks the depot first at ~1.0.
	result, err := searcher.SearchImage(ctx, photo, "image/png", 5)
	require.NoError(t, err)
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, depotID, result.Matches[0].Asset.Id)
	assert.InDelta(t, 1.0, result.Matches[0].Score, 1e-6)
	assert.NotEmpty(t, result.DetectedTags)

	// Maintenance jobs run clean over the populated store.
	require.NoError(t, engine.NewReembedder(nil, io.Discard).Run(ctx))

	counts, err := engine.NewRegeocoder(nil, io.Discard).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Examined, "every addressed asset already has a location")

	// Detach the photo again.
	removed, _, err := uploader.Remove(ctx, depotID, 0)
	require.NoError(t, err)
	assert.Equal(t, "depot.png", removed.Filename)

	images, err := engine.Repository().GetImages(ctx, depotID)
	require.NoError(t, err)
	assert.Empty(t, images.Images)
}
