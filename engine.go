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


package mercil

import (
	"context"
	"io"
	"log/slog"

	"github.com/ffirst2551/mercil/ai"
	"github.com/ffirst2551/mercil/ai/openai"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/geo"
	"github.com/ffirst2551/mercil/ingestion"
	"github.com/ffirst2551/mercil/reindex"
	"github.com/ffirst2551/mercil/search"
	"github.com/ffirst2551/mercil/storage"
	"github.com/ffirst2551/mercil/storage/badger"
	"github.com/ffirst2551/mercil/storage/postgres"
	"github.com/ffirst2551/mercil/upload"
)

const defaultUploadDir = "uploads"

// Config selects and parameterizes an Engine's storage backend, AI
// services, and upload directory.
type Config struct {
	// DBPath is the directory for the Badger store. Ignored when
	// PostgresDSN is set or InMemory is true.
	DBPath string

	// PostgresDSN selects the PostgreSQL backend when non-empty.
	PostgresDSN string

	// InMemory runs the Badger store without persistence.
	InMemory bool

	// UploadDir is where uploaded images and their thumbnails are kept.
	// Defaults to "uploads".
	UploadDir string

	// AI configures the embedding and vision services, including the
	// embedding dimension the store is opened with. Nil uses
	// ai.DefaultConfig.
	AI *ai.Config
}

// Engine wires the storage backend, AI provider, geocoder, and upload
// store together and hands out the services built on them. One Engine
// per process; the services it creates share its collaborators.
type Engine struct {
	backend     *badger.Backend
	assets      storage.AssetRepository
	checkpoints storage.CheckpointRepository
	files       upload.Store
	provider    ai.AIProvider
	geocoder    geo.Geocoder
	logger      *slog.Logger
}

// Option substitutes one of the Engine's collaborators before the
// defaults are constructed, typically to inject test doubles.
type Option func(*Engine)

// WithProvider substitutes the AI provider.
func WithProvider(provider ai.AIProvider) Option {
	return func(e *Engine) {
		e.provider = provider
	}
}

// WithGeocoder substitutes the geocoder.
func WithGeocoder(geocoder geo.Geocoder) Option {
	return func(e *Engine) {
		e.geocoder = geocoder
	}
}

// WithUploadStore substitutes the upload file store.
func WithUploadStore(files upload.Store) Option {
	return func(e *Engine) {
		e.files = files
	}
}

// WithRepositories substitutes both storage repositories. The Engine
// then opens no backend of its own; whoever created the repositories
// keeps ownership of the backing store.
func WithRepositories(assets storage.AssetRepository, checkpoints storage.CheckpointRepository) Option {
	return func(e *Engine) {
		e.assets = assets
		e.checkpoints = checkpoints
	}
}

// WithEngineLogger sets the logger used by the Engine itself.
func WithEngineLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// NewEngine opens the configured backend and constructs any collaborator
// the options did not supply. On error, everything already opened is
// closed again.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	aiCfg := cfg.AI
	if aiCfg == nil {
		aiCfg = ai.DefaultConfig()
	}

	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	if e.assets == nil {
		if cfg.PostgresDSN != "" {
			repo, err := postgres.Open(cfg.PostgresDSN, aiCfg.Dimension)
			if err != nil {
				return nil, err
			}
			e.assets = repo
			e.checkpoints = postgres.NewCheckpointRepository(repo)
		} else {
			backend, err := badger.OpenBackend(cfg.DBPath, aiCfg.Dimension, cfg.InMemory)
			if err != nil {
				return nil, err
			}
			assets, err := badger.NewAssetRepository(backend)
			if err != nil {
				backend.Close()
				return nil, err
			}
			e.backend = backend
			e.assets = assets
			e.checkpoints = badger.NewCheckpointRepository(backend)
		}
	}

	if e.provider == nil {
		provider, err := openai.NewProvider(aiCfg)
		if err != nil {
			e.closeStorage()
			return nil, err
		}
		e.provider = provider
	}

	if e.geocoder == nil {
		e.geocoder = geo.NewNominatimGeocoder()
	}

	if e.files == nil {
		dir := cfg.UploadDir
		if dir == "" {
			dir = defaultUploadDir
		}
		files, err := upload.NewDiskStore(dir)
		if err != nil {
			e.provider.Close()
			e.closeStorage()
			return nil, err
		}
		e.files = files
	}

	return e, nil
}

// Close releases the Engine's collaborators in reverse construction
// order. Services created by the factories must not be used afterward.
func (e *Engine) Close() error {
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	return e.closeStorage()
}

func (e *Engine) closeStorage() error {
	if e.checkpoints != nil {
		if err := e.checkpoints.Close(); err != nil {
			e.logger.Error("error closing checkpoint repository", "err", err)
			return err
		}
	}
	if e.assets != nil {
		if err := e.assets.Close(); err != nil {
			e.logger.Error("error closing asset repository", "err", err)
			return err
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing storage backend", "err", err)
			return err
		}
	}
	return nil
}

// Repository returns the asset repository.
func (e *Engine) Repository() storage.AssetRepository {
	return e.assets
}

// Checkpoints returns the checkpoint repository.
func (e *Engine) Checkpoints() storage.CheckpointRepository {
	return e.checkpoints
}

// UploadStore returns the upload file store.
func (e *Engine) UploadStore() upload.Store {
	return e.files
}

// Stats summarizes the store's contents.
func (e *Engine) Stats(ctx context.Context) (*core.StoreStats, error) {
	return e.assets.Stats(ctx)
}

// NewPipeline creates an ingestion pipeline over the Engine's store,
// geocoder, and embedder.
func (e *Engine) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(e.assets, e.geocoder, e.provider, opts...)
}

// NewSearcher creates a searcher over the Engine's store and embedder.
func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(e.assets, e.files, e.provider, opts...)
}

// NewUploader creates an uploader over the Engine's store, file store,
// and AI services.
func (e *Engine) NewUploader(opts ...upload.Option) (*upload.Uploader, error) {
	return upload.NewUploader(e.assets, e.files, e.provider, opts...)
}

// NewReembedder creates a maintenance job that rebuilds every asset's
// text embedding. Progress goes to the given writer.
func (e *Engine) NewReembedder(config *reindex.Config, progress io.Writer) *reindex.Reembedder {
	return reindex.NewReembedder(e.assets, e.checkpoints, e.provider.Embedder(), config, progress)
}

// NewRegeocoder creates a maintenance job that resolves missing asset
// locations. Progress goes to the given writer.
func (e *Engine) NewRegeocoder(config *reindex.RegeocodeConfig, progress io.Writer) *reindex.Regeocoder {
	return reindex.NewRegeocoder(e.assets, e.geocoder, config, progress)
}
