package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffirst2551/mercil/ai/mock"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
	"github.com/ffirst2551/mercil/storage/badger"
)

type uploaderFixture struct {
	uploader *Uploader
	repo     storage.AssetRepository
	embedder *mock.MockEmbedder
	tagger   *mock.MockTagger
	dir      string
}

func newTestUploader(t *testing.T) *uploaderFixture {
	t.Helper()

	repo, _, backend, err := badger.NewMemoryRepositories(3)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	dir := t.TempDir()
	files, err := NewDiskStore(dir)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedderWithDimension(3)
	tagger := mock.NewMockTagger()
	provider := mock.NewMockProviderWithServices(embedder, tagger)

	uploader, err := NewUploader(repo, files, provider)
	require.NoError(t, err)

	return &uploaderFixture{
		uploader: uploader,
		repo:     repo,
		embedder: embedder,
		tagger:   tagger,
		dir:      dir,
	}
}

func TestNewUploader_RequiresCollaborators(t *testing.T) {
	repo, _, backend, err := badger.NewMemoryRepositories(3)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	files, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	provider := mock.NewMockProvider()

	_, err = NewUploader(nil, files, provider)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewUploader(repo, nil, provider)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewUploader(repo, files, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func (f *uploaderFixture) insertAsset(t *testing.T) core.ID {
	t.Helper()
	id, err := f.repo.Insert(context.Background(), &core.Asset{
		Name:        "Relief Depot",
		Description: "Warehouse with bottled water and blankets",
		Category:    "supplies",
	})
	require.NoError(t, err)
	return id
}

func TestUploaderAttach(t *testing.T) {
	f := newTestUploader(t)
	ctx := context.Background()
	id := f.insertAsset(t)
	data := testPNG(t, 40, 30)

	receipt, err := f.uploader.Attach(ctx, id, data, "depot.png", "image/png", "front entrance", true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(receipt.Image.URL, "/uploads/"))
	assert.Equal(t, "depot.png", receipt.Image.Filename)
	assert.Equal(t, "front entrance", receipt.Image.Caption)
	assert.Equal(t, int64(len(data)), receipt.Image.SizeBytes)
	assert.Equal(t, "image/png", receipt.Image.ContentType)
	assert.Equal(t, core.ContentChecksum(data), receipt.Image.Checksum)
	assert.False(t, receipt.Image.UploadedAt.IsZero())
	assert.NotEmpty(t, receipt.Tags)
	assert.Equal(t, 1, receipt.Counts.ImageCount)

	// The record, tags and embedding all landed on the asset.
	asset, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, asset.Images, 1)
	assert.Equal(t, receipt.Image.URL, asset.Images[0].URL)
	assert.Len(t, asset.ImageEmbedding, 3)
	for _, tag := range receipt.Tags {
		assert.Contains(t, asset.Tags, tag)
	}

	// Original and thumbnail exist on disk.
	name := strings.TrimPrefix(receipt.Image.URL, "/uploads/")
	_, err = os.Stat(filepath.Join(f.dir, name))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.dir, thumbName(name)))
	require.NoError(t, err)

	assert.Equal(t, 1, f.embedder.CallCount())
	assert.Equal(t, 1, f.tagger.CallCount())
}

func TestUploaderAttach_NoAutoTag(t *testing.T) {
	f := newTestUploader(t)
	ctx := context.Background()
	id := f.insertAsset(t)

	receipt, err := f.uploader.Attach(ctx, id, testPNG(t, 10, 10), "plain.png", "image/png", "", false)
	require.NoError(t, err)

	assert.Empty(t, receipt.Tags)
	assert.Equal(t, 1, receipt.Counts.ImageCount)

	asset, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, asset.ImageEmbedding)
	assert.Empty(t, asset.Tags)

	assert.Zero(t, f.embedder.CallCount())
	assert.Zero(t, f.tagger.CallCount())
}

func TestUploaderAttach_AssetMissing(t *testing.T) {
	f := newTestUploader(t)

	_, err := f.uploader.Attach(context.Background(), core.ID(999), testPNG(t, 10, 10), "x.png", "image/png", "", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, dirEntries(t, f.dir))
}

func TestUploaderAttach_InvalidImage(t *testing.T) {
	f := newTestUploader(t)
	id := f.insertAsset(t)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "garbage bytes", data: []byte("not an image at all")},
		{name: "empty", data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uploader.Attach(context.Background(), id, tt.data, "x.jpg", "image/jpeg", "", true)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}

	assert.Empty(t, dirEntries(t, f.dir))
	assert.Zero(t, f.embedder.CallCount())
	assert.Zero(t, f.tagger.CallCount())
}

func TestUploaderAttach_TaggingFailureCleansUp(t *testing.T) {
	f := newTestUploader(t)
	ctx := context.Background()
	id := f.insertAsset(t)

	f.tagger.TagImageFunc = func(ctx context.Context, data []byte, contentType string) ([]string, error) {
		return nil, errors.New("vision model offline")
	}

	_, err := f.uploader.Attach(ctx, id, testPNG(t, 10, 10), "x.png", "image/png", "", true)
	require.Error(t, err)

	// Nothing on disk and nothing on the asset.
	assert.Empty(t, dirEntries(t, f.dir))
	asset, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, asset.Images)
}

func TestUploaderAttach_EmbeddingFailureCleansUp(t *testing.T) {
	f := newTestUploader(t)
	ctx := context.Background()
	id := f.insertAsset(t)

	f.embedder.EmbedImageFunc = func(ctx context.Context, data []byte, contentType string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}

	_, err := f.uploader.Attach(ctx, id, testPNG(t, 10, 10), "x.png", "image/png", "", true)
	require.Error(t, err)

	assert.Empty(t, dirEntries(t, f.dir))
	asset, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, asset.Images)
	assert.Nil(t, asset.ImageEmbedding)
}

func TestUploaderRemove(t *testing.T) {
	f := newTestUploader(t)
	ctx := context.Background()
	id := f.insertAsset(t)

	first, err := f.uploader.Attach(ctx, id, testPNG(t, 10, 10), "first.png", "image/png", "", false)
	require.NoError(t, err)
	second, err := f.uploader.Attach(ctx, id, testPNG(t, 20, 20), "second.png", "image/png", "", false)
	require.NoError(t, err)

	removed, remaining, err := f.uploader.Remove(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, first.Image.URL, removed.URL)
	assert.Equal(t, 1, remaining)

	// The first upload's files are gone, the second's remain.
	firstName := strings.TrimPrefix(first.Image.URL, "/uploads/")
	_, err = os.Stat(filepath.Join(f.dir, firstName))
	assert.True(t, os.IsNotExist(err))
	secondName := strings.TrimPrefix(second.Image.URL, "/uploads/")
	_, err = os.Stat(filepath.Join(f.dir, secondName))
	require.NoError(t, err)

	images, err := f.repo.GetImages(ctx, id)
	require.NoError(t, err)
	require.Len(t, images.Images, 1)
	assert.Equal(t, "second.png", images.Images[0].Filename)
}

func TestUploaderRemove_IndexOutOfRange(t *testing.T) {
	f := newTestUploader(t)
	id := f.insertAsset(t)

	_, _, err := f.uploader.Remove(context.Background(), id, 0)
	assert.ErrorIs(t, err, storage.ErrIndexOutOfRange)
}

func TestUploaderRemove_FileAlreadyGone(t *testing.T) {
	f := newTestUploader(t)
	ctx := context.Background()
	id := f.insertAsset(t)

	receipt, err := f.uploader.Attach(ctx, id, testPNG(t, 10, 10), "x.png", "image/png", "", false)
	require.NoError(t, err)

	// Delete the backing file out from under the store.
	name := strings.TrimPrefix(receipt.Image.URL, "/uploads/")
	require.NoError(t, os.Remove(filepath.Join(f.dir, name)))

	removed, remaining, err := f.uploader.Remove(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, receipt.Image.URL, removed.URL)
	assert.Zero(t, remaining)
}
