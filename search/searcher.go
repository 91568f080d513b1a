package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ffirst2551/mercil/ai"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/storage"
	"github.com/ffirst2551/mercil/upload"
)

// ImageResult carries an image query's ranked matches along with the tags
// detected on the query image itself, for caller context.
type ImageResult struct {
	Matches      []core.Match `json:"matches"`
	DetectedTags []string     `json:"detected_tags,omitempty"`
}

// Searcher answers text and image queries by embedding the query and
// ranking stored assets by cosine similarity. Both entry points share the
// same edge policy: a non-positive limit and an empty query are rejected,
// while a store with no embeddings of the queried modality yields an
// empty result, not an error.
type Searcher struct {
	repo     storage.AssetRepository
	files    upload.Store
	embedder ai.Embedder
	tagger   ai.Tagger
	monitor  Monitor
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMonitor sets the query monitor.
// Default is a no-op.
func WithMonitor(m Monitor) Option {
	return func(s *Searcher) error {
		if m == nil {
			m = &noopMonitor{}
		}
		s.monitor = m
		return nil
	}
}

// NewSearcher creates a searcher over the given repository, file store and
// AI provider.
func NewSearcher(
	repo storage.AssetRepository,
	files upload.Store,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if files == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		repo:     repo,
		files:    files,
		embedder: provider.Embedder(),
		tagger:   provider.Tagger(),
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// queryParams holds per-call narrowing options.
type queryParams struct {
	within *storage.GeoFilter
}

// QueryOption narrows a single search call.
type QueryOption func(*queryParams)

// WithinKM restricts results to assets located within radiusKM kilometers
// of center. Assets without a location never match.
func WithinKM(center core.Location, radiusKM float64) QueryOption {
	return func(q *queryParams) {
		q.within = &storage.GeoFilter{Center: center, RadiusKM: radiusKM}
	}
}

// SearchText embeds the query text and returns up to limit assets ranked
// by text-embedding similarity, best first.
func (s *Searcher) SearchText(ctx context.Context, query string, limit int, opts ...QueryOption) ([]core.Match, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	var params queryParams
	for _, opt := range opts {
		opt(&params)
	}

	s.monitor.Start(core.ModalityText)
	start := time.Now()

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error embedding query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.repo.SimilarityQuery(ctx, embedding, storage.QueryOptions{
		Limit:    limit,
		Modality: core.ModalityText,
		Within:   params.within,
	})
	if err != nil {
		s.logger.Error("error querying similar assets", "err", err)
		return nil, err
	}

	elapsed := time.Since(start)
	s.monitor.Finish(core.ModalityText, len(matches), elapsed)
	s.logger.Debug("text query complete", "results", len(matches), "elapsed", elapsed)

	return matches, nil
}

// SearchImage embeds and tags the query image, then returns up to limit
// assets ranked by image-embedding similarity, best first, together with
// the tags detected on the query. The query image exists on disk only for
// the duration of the call.
func (s *Searcher) SearchImage(ctx context.Context, data []byte, contentType string, limit int, opts ...QueryOption) (*ImageResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if len(data) == 0 {
		return nil, ErrEmptyQuery
	}

	var params queryParams
	for _, opt := range opts {
		opt(&params)
	}

	s.monitor.Start(core.ModalityImage)
	start := time.Now()

	var result *ImageResult
	err := s.files.WithTemp(data, func(path string) error {
		query, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading query image: %w", err)
		}

		// Embedding and tagging are independent; run them in parallel.
		var (
			embedding []float32
			tags      []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			embedding, err = s.embedder.EmbedImage(gctx, query, contentType)
			return err
		})
		g.Go(func() error {
			var err error
			tags, err = s.tagger.TagImage(gctx, query, contentType)
			return err
		})
		if err := g.Wait(); err != nil {
			s.logger.Error("error analyzing query image", "err", err)
			return err
		}

		matches, err := s.repo.SimilarityQuery(ctx, embedding, storage.QueryOptions{
			Limit:    limit,
			Modality: core.ModalityImage,
			Within:   params.within,
		})
		if err != nil {
			s.logger.Error("error querying similar assets", "err", err)
			return err
		}

		result = &ImageResult{Matches: matches, DetectedTags: tags}
		return nil
	})
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.monitor.Finish(core.ModalityImage, len(result.Matches), elapsed)
	s.logger.Debug("image query complete",
		"results", len(result.Matches), "detectedTags", len(result.DetectedTags), "elapsed", elapsed)

	return result, nil
}
