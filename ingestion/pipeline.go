package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/ffirst2551/mercil/ai"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/geo"
	"github.com/ffirst2551/mercil/storage"
)

const (
	// defaultPoolSize bounds how many batch items process at once.
	// Geocoding is serialized by the geocoder itself, so a bigger pool
	// mostly parallelizes embedding calls.
	defaultPoolSize = 4

	// defaultCategory is assigned to items that arrive without one.
	defaultCategory = "general"
)

// Pipeline converts raw asset descriptions into stored records. Each item
// moves through a linear per-item flow: geocode the address (optional),
// embed the name and description, insert. A bad item is skipped and
// reported; it never aborts the rest of the batch.
type Pipeline struct {
	repo     storage.AssetRepository
	geocoder geo.Geocoder
	embedder ai.Embedder
	pool     *ants.Pool
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is 4, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	repo storage.AssetRepository,
	geocoder geo.Geocoder,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if geocoder == nil {
		return nil, ErrGeocoderRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repo:     repo,
		geocoder: geocoder,
		embedder: provider.Embedder(),
		pool:     pool,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Run processes the batch and blocks until every item has an outcome.
// The report lists outcomes in input order: the assigned id for stored
// items, the skip reason for the rest.
func (p *Pipeline) Run(ctx context.Context, batch []core.NewAsset) (*Report, error) {
	start := time.Now()
	report := &Report{Outcomes: make([]Outcome, len(batch))}

	var wg sync.WaitGroup
	for i := range batch {
		idx, item := i, batch[i]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			report.Outcomes[idx] = p.processOne(ctx, idx, item)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting to worker pool: %w", err)
		}
	}
	wg.Wait()

	report.tally()
	report.Elapsed = time.Since(start)

	p.logger.Info("batch complete",
		"items", len(batch), "stored", report.Stored, "skipped", report.Skipped,
		"located", report.Located, "elapsed", report.Elapsed)

	return report, nil
}

// processOne runs the per-item flow. Every failure path returns a skip
// outcome; errors never escape to the batch level.
func (p *Pipeline) processOne(ctx context.Context, idx int, item core.NewAsset) Outcome {
	if err := core.ValidateNewAsset(&item); err != nil {
		p.logger.Warn("skipping asset: empty name", "index", idx, "error", err)
		return Outcome{Index: idx, Name: item.Name, SkipReason: "empty name"}
	}

	text := core.EmbeddingText(item.Name, item.Description)
	if text == "" {
		p.logger.Warn("skipping asset: nothing to embed", "index", idx, "name", item.Name)
		return Outcome{Index: idx, Name: item.Name, SkipReason: "nothing to embed"}
	}

	// Geocoding failure of either kind stores the asset without a
	// location; only embedding failures skip the item.
	var loc *core.Location
	if strings.TrimSpace(item.Address) != "" {
		var err error
		loc, err = p.geocoder.Geocode(ctx, item.Address)
		if err != nil {
			p.logger.Warn("geocoding failed, storing without location",
				"name", item.Name, "address", item.Address, "error", err)
			loc = nil
		}
	}

	embedding, err := p.embedder.EmbedText(ctx, text)
	if err != nil {
		p.logger.Warn("skipping asset: embedding failed", "index", idx, "name", item.Name, "error", err)
		return Outcome{Index: idx, Name: item.Name, SkipReason: fmt.Sprintf("embedding failed: %v", err)}
	}

	category := strings.TrimSpace(item.Category)
	if category == "" {
		category = defaultCategory
	}

	asset := &core.Asset{
		Name:          item.Name,
		Description:   item.Description,
		Address:       item.Address,
		Category:      category,
		Location:      loc,
		TextEmbedding: embedding,
		Metadata:      item.Metadata,
	}

	id, err := p.repo.Insert(ctx, asset)
	if err != nil {
		p.logger.Warn("skipping asset: store rejected it", "index", idx, "name", item.Name, "error", err)
		return Outcome{Index: idx, Name: item.Name, SkipReason: fmt.Sprintf("storing failed: %v", err)}
	}

	p.logger.Info("asset stored", "id", id, "name", item.Name, "located", loc != nil)
	return Outcome{Index: idx, Name: item.Name, ID: id, Stored: true, Located: loc != nil}
}

// Release releases the worker pool. The pipeline should not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
