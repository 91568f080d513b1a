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


package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ffirst2551/mercil/ai"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
)

// Receipt reports a completed attachment: the stored record, the tags this
// upload generated, and the asset's attachment counts after the append.
type Receipt struct {
	Image  core.ImageRecord `json:"image"`
	Tags   []string         `json:"generated_tags,omitempty"`
	Counts core.ImageCounts `json:"counts"`
}

// Uploader attaches image files to assets. It persists bytes through a
// Store, optionally tags and embeds them, and records the result on the
// asset atomically.
type Uploader struct {
	repo     storage.AssetRepository
	files    Store
	embedder ai.Embedder
	tagger   ai.Tagger
	logger   *slog.Logger
}

// Option configures an Uploader.
type Option func(*Uploader) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) error {
		if logger == nil {
			logger = slog.Default()
		}
		u.logger = logger
		return nil
	}
}

// NewUploader creates an uploader over the given repository, file store and
// AI provider.
func NewUploader(repo storage.AssetRepository, files Store, provider ai.AIProvider, opts ...Option) (*Uploader, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if files == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	u := &Uploader{
		repo:     repo,
		files:    files,
		embedder: provider.Embedder(),
		tagger:   provider.Tagger(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}

	return u, nil
}

// Attach stores an image and appends it to the asset's image list. With
// autoTag the image is tagged and embedded in parallel before the append;
// generated tags union into the asset's tag set and the embedding replaces
// the asset's image embedding. Any failure after the save removes the
// stored files again, so a failed attach leaves nothing on disk.
//
// Returns ErrInvalidImage for bytes that do not decode as an image and
// storage.ErrNotFound when the asset does not exist.
func (u *Uploader) Attach(ctx context.Context, assetID core.ID, data []byte, filename, contentType, caption string, autoTag bool) (*Receipt, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	// The asset must exist before anything touches disk.
	if _, err := u.repo.Get(ctx, assetID); err != nil {
		return nil, err
	}

	saved, err := u.files.Save(assetID, filename, data)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	var (
		tags      []string
		embedding []float32
	)
	if autoTag {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			tags, err = u.tagger.TagImage(gctx, data, contentType)
			return err
		})
		g.Go(func() error {
			var err error
			embedding, err = u.embedder.EmbedImage(gctx, data, contentType)
			return err
		})
		if err := g.Wait(); err != nil {
			u.discard(saved.URL)
			return nil, fmt.Errorf("analyzing upload: %w", err)
		}
	}

	record := core.ImageRecord{
		URL:         saved.URL,
		Filename:    filename,
		Caption:     caption,
		UploadedAt:  time.Now().UTC(),
		SizeBytes:   saved.Size,
		ContentType: contentType,
		Checksum:    core.ContentChecksum(data),
	}

	counts, err := u.repo.AppendImage(ctx, assetID, record, tags, embedding)
	if err != nil {
		u.discard(saved.URL)
		return nil, err
	}

	u.logger.Info("image attached",
		"assetID", assetID, "url", saved.URL, "generatedTags", len(tags), "images", counts.ImageCount)

	return &Receipt{Image: record, Tags: tags, Counts: *counts}, nil
}

// Remove detaches the image at index from the asset, then deletes its
// files. The detach is atomic in the store; file deletion afterwards is
// best-effort and only logged, since the record is already gone.
func (u *Uploader) Remove(ctx context.Context, assetID core.ID, index int) (*core.ImageRecord, int, error) {
	removed, remaining, err := u.repo.RemoveImageAt(ctx, assetID, index)
	if err != nil {
		return nil, 0, err
	}

	if err := u.files.Remove(removed.URL); err != nil {
		u.logger.Warn("image detached but file removal failed",
			"assetID", assetID, "url", removed.URL, "error", err)
	}

	u.logger.Info("image removed", "assetID", assetID, "index", index, "remaining", remaining)
	return removed, remaining, nil
}

// discard removes files left behind by a failed attach.
func (u *Uploader) discard(fileURL string) {
	if err := u.files.Remove(fileURL); err != nil {
		u.logger.Warn("failed to clean up stored upload", "url", fileURL, "error", err)
	}
}
