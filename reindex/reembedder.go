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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ffirst2551/mercil/ai"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
)

// checkpointReembed names the reembedder's resume point in the
// checkpoint store.
const checkpointReembed = "reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of assets fetched and embedded per batch
	BatchSize int

	// ReportInterval is how often to report progress (number of assets)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// DryRun embeds without writing anything back: no embedding updates,
	// no checkpoints. Validates a model change before committing to it.
	DryRun bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder rebuilds the text embedding of every stored asset in ID
// order, batch by batch. After each batch the last processed ID is
// checkpointed, so an interrupted run resumes after the last completed
// batch instead of starting over; a completed run clears the checkpoint.
type Reembedder struct {
	repo        storage.AssetRepository
	checkpoints storage.CheckpointRepository
	embedder    ai.Embedder
	config      *Config
	progress    io.Writer
	iterator    *AssetIterator
}

// NewReembedder creates a reembedder. A nil config uses DefaultConfig,
// a nil checkpoints repository disables resume, and a nil progress
// writer discards output (typically it is os.Stderr).
func NewReembedder(repo storage.AssetRepository, checkpoints storage.CheckpointRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:        repo,
		checkpoints: checkpoints,
		embedder:    embedder,
		config:      config,
		progress:    progress,
		iterator:    NewAssetIterator(repo, config.BatchSize),
	}
}

// Run executes the reembedding operation. Every stored asset gets a
// fresh text embedding computed from its name and description; progress
// is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	stats, err := r.repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("counting assets: %w", err)
	}
	if stats.TotalAssets == 0 {
		fmt.Fprintf(r.progress, "Store is empty (0 assets)\n")
		return nil
	}

	afterID := core.ID(0)
	if r.checkpoints != nil {
		resume, found, err := r.checkpoints.LoadCheckpoint(ctx, checkpointReembed)
		if err != nil {
			return fmt.Errorf("loading checkpoint: %w", err)
		}
		if found {
			afterID = resume
			fmt.Fprintf(r.progress, "Resuming after asset %d\n", resume)
		}
	}

	label := ""
	if r.config.DryRun {
		label = ", dry run"
	}
	fmt.Fprintf(r.progress, "Re-embedding up to %d assets (batch size: %d%s)\n",
		stats.TotalAssets, r.config.BatchSize, label)

	tracker := NewProgressTracker(r.progress, stats.TotalAssets, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, afterID, func(assets []*core.Asset) error {
		if err := r.reembedBatch(ctx, assets); err != nil {
			return err
		}

		processed += len(assets)
		tracker.Increment(len(assets))

		if r.checkpoints != nil && !r.config.DryRun {
			lastID := assets[len(assets)-1].Id
			if err := r.checkpoints.SaveCheckpoint(ctx, checkpointReembed, lastID); err != nil {
				return fmt.Errorf("saving checkpoint: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	if r.checkpoints != nil && !r.config.DryRun {
		if err := r.checkpoints.ClearCheckpoint(ctx, checkpointReembed); err != nil {
			return fmt.Errorf("clearing checkpoint: %w", err)
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Re-embedding complete. Processed %d assets in %v (%.1f assets/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return nil
}

// reembedBatch regenerates embeddings for one batch and writes them
// back. One embedding call covers the whole batch; a persistent failure
// fails the run with the checkpoint still pointing at the previous
// batch, so a resumed run retries this one.
func (r *Reembedder) reembedBatch(ctx context.Context, assets []*core.Asset) error {
	texts := make([]string, 0, len(assets))
	targets := make([]*core.Asset, 0, len(assets))
	for _, asset := range assets {
		text := core.EmbeddingText(asset.Name, asset.Description)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		targets = append(targets, asset)
	}
	if len(targets) == 0 {
		return nil
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		embeddings, embedErr = r.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("embedding batch after %d attempts: %w", r.config.MaxRetries, err)
	}
	if len(embeddings) != len(targets) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(targets), len(embeddings))
	}

	if r.config.DryRun {
		return nil
	}

	for i, asset := range targets {
		if err := r.repo.UpdateTextEmbedding(ctx, asset.Id, embeddings[i]); err != nil {
			return fmt.Errorf("updating asset %d: %w", asset.Id, err)
		}
	}
	return nil
}
