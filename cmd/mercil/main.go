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


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ffirst2551/mercil"
	"github.com/ffirst2551/mercil/ai"
	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/geo"
	"github.com/ffirst2551/mercil/ingestion"
	"github.com/ffirst2551/mercil/reindex"
	"github.com/ffirst2551/mercil/search"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mercil",
		Usage: "Match disaster-relief assets against text and image queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before:   setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Ingest assets from a JSON file",
				ArgsUsage: "<assets.json>",
				Action:    loadCommand,
				Flags: slices.Concat(storageFlags(), aiFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:  "nominatim",
						Usage: "Nominatim-compatible geocoding endpoint URL",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of assets to process concurrently",
						Value: 4,
					},
				}),
			},
			{
				Name:      "search",
				Usage:     "Find assets matching a text query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags:     slices.Concat(storageFlags(), aiFlags(), queryFlags()),
			},
			{
				Name:      "search-image",
				Usage:     "Find assets similar to an image",
				ArgsUsage: "<image-file>",
				Action:    searchImageCommand,
				Flags:     slices.Concat(storageFlags(), aiFlags(), queryFlags()),
			},
			{
				Name:      "upload",
				Usage:     "Attach an image file to an asset",
				ArgsUsage: "<asset-id> <image-file>",
				Action:    uploadCommand,
				Flags: slices.Concat(storageFlags(), aiFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:  "caption",
						Usage: "Caption to store with the image",
					},
					&cli.BoolFlag{
						Name:  "no-tag",
						Usage: "Skip vision tagging and image embedding",
					},
				}),
			},
			{
				Name:      "images",
				Usage:     "List the images attached to an asset",
				ArgsUsage: "<asset-id>",
				Action:    imagesCommand,
				Flags:     storageFlags(),
			},
			{
				Name:      "remove-image",
				Usage:     "Detach an image from an asset by index",
				ArgsUsage: "<asset-id> <index>",
				Action:    removeImageCommand,
				Flags:     storageFlags(),
			},
			{
				Name:   "stats",
				Usage:  "Summarize the contents of the store",
				Action: statsCommand,
				Flags:  storageFlags(),
			},
			{
				Name:   "reembed",
				Usage:  "Recompute text embeddings for every asset",
				Action: reembedCommand,
				Flags: slices.Concat(storageFlags(), aiFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of assets to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N assets",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Embed without writing results back to the store",
					},
				}),
			},
			{
				Name:   "regeocode",
				Usage:  "Retry geocoding for assets without coordinates",
				Action: regeocodeCommand,
				Flags: slices.Concat(storageFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:  "nominatim",
						Usage: "Nominatim-compatible geocoding endpoint URL",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of assets to scan in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N assets",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Re-geocode every addressed asset, not just unlocated ones",
					},
				}),
			},
		},
	}
}

// storageFlags selects and configures the backing store. Every command
// carries them: exactly one of --db and --postgres must be given.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
		},
		&cli.StringFlag{
			Name:  "postgres",
			Usage: "PostgreSQL DSN (requires the vector and postgis extensions)",
		},
		&cli.StringFlag{
			Name:  "uploads",
			Usage: "Directory for stored image files",
			Value: "uploads",
		},
	}
}

// aiFlags configure the model service for commands that embed or tag.
func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name (must embed text and images in one space)",
			Value: "clip-vit-b-32",
		},
		&cli.StringFlag{
			Name:  "vision-model",
			Usage: "Vision chat model name for image tagging",
			Value: "qwen2.5vl:7b",
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Embedding vector length",
			Value: ai.DefaultDimension,
		},
	}
}

// queryFlags restrict search results geographically.
func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of matches to return",
			Value:   5,
		},
		&cli.Float64Flag{
			Name:  "lat",
			Usage: "Latitude of the search center",
		},
		&cli.Float64Flag{
			Name:  "lon",
			Usage: "Longitude of the search center",
		},
		&cli.Float64Flag{
			Name:  "radius",
			Usage: "Only return assets within this many kilometers of --lat/--lon",
		},
	}
}

func loadCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one JSON file argument")
	}
	path := c.Args().First()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var batch []core.NewAsset
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewPipeline(ingestion.WithPoolSize(c.Int("workers")))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Loading %d assets from %s\n", len(batch), path)

	report, err := pipeline.Run(ctx, batch)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	for _, o := range report.Outcomes {
		if o.Stored {
			fmt.Printf("[%d] stored '%s' as asset %d\n", o.Index, o.Name, o.ID)
		} else {
			fmt.Printf("[%d] skipped '%s': %s\n", o.Index, o.Name, o.SkipReason)
		}
	}
	fmt.Printf("Stored %d of %d assets (%d located, %d skipped) in %v\n",
		report.Stored, len(batch), report.Located, report.Skipped, report.Elapsed)

	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a search query is required")
	}

	opts, err := radiusOptions(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	matches, err := searcher.SearchText(ctx, query, c.Int("limit"), opts...)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printMatches(matches)
	return nil
}

func searchImageCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one image file argument")
	}
	path := c.Args().First()

	opts, err := radiusOptions(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	result, err := searcher.SearchImage(ctx, data, http.DetectContentType(data), c.Int("limit"), opts...)
	if err != nil {
		return fmt.Errorf("image search failed: %w", err)
	}

	if len(result.DetectedTags) > 0 {
		fmt.Printf("Detected tags: %s\n", strings.Join(result.DetectedTags, ", "))
	}
	printMatches(result.Matches)
	return nil
}

func uploadCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 2 {
		return fmt.Errorf("expected asset ID and image file arguments")
	}

	id, err := core.ParseID(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid asset ID %q: %w", c.Args().Get(0), err)
	}

	path := c.Args().Get(1)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	uploader, err := engine.NewUploader()
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}

	receipt, err := uploader.Attach(ctx, id, data,
		filepath.Base(path), http.DetectContentType(data), c.String("caption"), !c.Bool("no-tag"))
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Printf("Attached %s to asset %d (%d images, %d tags)\n",
		receipt.Image.Filename, id, receipt.Counts.ImageCount, receipt.Counts.TagCount)
	if len(receipt.Tags) > 0 {
		fmt.Printf("Generated tags: %s\n", strings.Join(receipt.Tags, ", "))
	}
	return nil
}

func imagesCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one asset ID argument")
	}

	id, err := core.ParseID(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid asset ID %q: %w", c.Args().First(), err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	listing, err := engine.Repository().GetImages(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	fmt.Printf("Asset %d: '%s' (%d images)\n", listing.Id, listing.Name, len(listing.Images))
	for i, img := range listing.Images {
		fmt.Printf("%d: %s [%s, %d bytes] uploaded %s\n",
			i, img.Filename, img.ContentType, img.SizeBytes, img.UploadedAt.Format(time.RFC3339))
		if img.Caption != "" {
			fmt.Printf("   %s\n", img.Caption)
		}
	}
	if len(listing.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(listing.Tags, ", "))
	}
	return nil
}

func removeImageCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() != 2 {
		return fmt.Errorf("expected asset ID and image index arguments")
	}

	id, err := core.ParseID(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid asset ID %q: %w", c.Args().Get(0), err)
	}

	index, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid image index %q: %w", c.Args().Get(1), err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	uploader, err := engine.NewUploader()
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}

	removed, remaining, err := uploader.Remove(ctx, id, index)
	if err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}

	fmt.Printf("Removed %s from asset %d (%d images remain)\n", removed.Filename, id, remaining)
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Printf("Assets:        %d\n", stats.TotalAssets)
	fmt.Printf("With location: %d\n", stats.WithLocation)
	fmt.Printf("With images:   %d\n", stats.WithImages)
	fmt.Printf("Unique tags:   %d\n", stats.UniqueTags)
	if len(stats.ByCategory) > 0 {
		categories := make([]string, 0, len(stats.ByCategory))
		for cat := range stats.ByCategory {
			categories = append(categories, cat)
		}
		sort.Strings(categories)
		fmt.Println("By category:")
		for _, cat := range categories {
			fmt.Printf("  %s: %d\n", cat, stats.ByCategory[cat])
		}
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		DryRun:         c.Bool("dry-run"),
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", storageLabel(c))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := engine.NewReembedder(config, os.Stderr).Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func regeocodeCommand(c *cli.Context) error {
	ctx := context.Background()

	config := &reindex.RegeocodeConfig{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		All:            c.Bool("all"),
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", storageLabel(c))
	fmt.Fprintln(os.Stderr)

	counts, err := engine.NewRegeocoder(config, os.Stderr).Run(ctx)
	if err != nil {
		return fmt.Errorf("regeocoding failed: %w", err)
	}

	fmt.Printf("Examined %d assets: %d geocoded, %d no match, %d unavailable\n",
		counts.Examined, counts.Geocoded, counts.NoMatch, counts.Unavailable)
	return nil
}

// openEngine builds an Engine from the shared storage and AI flags. Exactly
// one of --db and --postgres selects the backend.
func openEngine(c *cli.Context) (*mercil.Engine, error) {
	dbPath := c.String("db")
	dsn := c.String("postgres")
	if dbPath == "" && dsn == "" {
		return nil, fmt.Errorf("either --db or --postgres is required")
	}
	if dbPath != "" && dsn != "" {
		return nil, fmt.Errorf("--db and --postgres are mutually exclusive")
	}

	aiConfig := aiConfigFromFlags(c)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	var opts []mercil.Option
	if endpoint := c.String("nominatim"); endpoint != "" {
		opts = append(opts, mercil.WithGeocoder(geo.NewNominatimGeocoder(geo.WithBaseURL(endpoint))))
	}

	engine, err := mercil.NewEngine(mercil.Config{
		DBPath:      dbPath,
		PostgresDSN: dsn,
		UploadDir:   c.String("uploads"),
		AI:          aiConfig,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return engine, nil
}

// aiConfigFromFlags builds the model configuration, falling back to the
// package defaults for any flag the command does not define.
func aiConfigFromFlags(c *cli.Context) *ai.Config {
	var opts []ai.ConfigOption
	if host := c.String("host"); host != "" {
		opts = append(opts, ai.WithHost(host))
	}
	if model := c.String("embedding-model"); model != "" {
		opts = append(opts, ai.WithEmbeddingModel(model))
	}
	if model := c.String("vision-model"); model != "" {
		opts = append(opts, ai.WithVisionModel(model))
	}
	if dim := c.Int("dimension"); dim > 0 {
		opts = append(opts, ai.WithDimension(dim))
	}
	return ai.NewConfig(opts...)
}

// radiusOptions translates --lat/--lon/--radius into query options.
func radiusOptions(c *cli.Context) ([]search.QueryOption, error) {
	if !c.IsSet("radius") {
		if c.IsSet("lat") || c.IsSet("lon") {
			return nil, fmt.Errorf("--lat and --lon require --radius")
		}
		return nil, nil
	}
	if !c.IsSet("lat") || !c.IsSet("lon") {
		return nil, fmt.Errorf("--radius requires both --lat and --lon")
	}
	center := core.Location{Latitude: c.Float64("lat"), Longitude: c.Float64("lon")}
	return []search.QueryOption{search.WithinKM(center, c.Float64("radius"))}, nil
}

func printMatches(matches []core.Match) {
	fmt.Printf("Found %d matches\n", len(matches))
	for i, m := range matches {
		fmt.Printf("%d: '%s' (%d)[%0.3f]\n", i+1, m.Asset.Name, m.Asset.Id, m.Score)
		if m.Asset.Address != "" {
			fmt.Printf("   %s\n", m.Asset.Address)
		}
	}
}

// storageLabel names the selected backend for progress preambles without
// echoing credentials from a DSN.
func storageLabel(c *cli.Context) string {
	if c.String("postgres") != "" {
		return "postgres"
	}
	return c.String("db")
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
