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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ffirst2551/mercil/core"
	"github.com/ffirst2551/mercil/geo"
	"github.com/ffirst2551/mercil/storage"
)

// RegeocodeConfig holds configuration for the regeocoding operation.
type RegeocodeConfig struct {
	// BatchSize is the number of assets fetched per storage page
	BatchSize int

	// ReportInterval is how often to report progress (number of assets)
	ReportInterval int

	// All re-geocodes every asset that has an address. The default is to
	// attempt only addressed assets that lack a location, recovering from
	// past geocoding outages without touching good coordinates.
	All bool
}

// DefaultRegeocodeConfig returns a RegeocodeConfig with sensible defaults.
func DefaultRegeocodeConfig() *RegeocodeConfig {
	return &RegeocodeConfig{
		BatchSize:      100,
		ReportInterval: 100,
	}
}

// GeocodeCounts reports how a regeocoding run classified the addressed
// assets it attempted.
type GeocodeCounts struct {
	// Examined is the number of assets the run attempted to geocode.
	Examined int `json:"examined"`

	// Geocoded is the number of assets that received a location.
	Geocoded int `json:"geocoded"`

	// NoMatch counts assets whose address the service answered for but
	// could not resolve. Their stored location, if any, is left alone.
	NoMatch int `json:"no_match"`

	// Unavailable counts assets skipped because the service could not be
	// reached even after the geocoder's own retries.
	Unavailable int `json:"unavailable"`
}

// Regeocoder walks the store and resolves asset addresses that never got
// coordinates, typically after a geocoding outage during ingestion. The
// geocoder's own retry and request-spacing policy governs each call; the
// job itself never hammers the service.
type Regeocoder struct {
	repo     storage.AssetRepository
	geocoder geo.Geocoder
	config   *RegeocodeConfig
	progress io.Writer
	iterator *AssetIterator
	logger   *slog.Logger
}

// NewRegeocoder creates a regeocoder. A nil config uses
// DefaultRegeocodeConfig; a nil progress writer discards output.
func NewRegeocoder(repo storage.AssetRepository, geocoder geo.Geocoder, config *RegeocodeConfig, progress io.Writer) *Regeocoder {
	if config == nil {
		config = DefaultRegeocodeConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Regeocoder{
		repo:     repo,
		geocoder: geocoder,
		config:   config,
		progress: progress,
		iterator: NewAssetIterator(repo, config.BatchSize),
		logger:   slog.Default(),
	}
}

// Run executes the regeocoding operation and reports how the attempted
// assets were classified. Service unavailability for one asset does not
// abort the run; the asset is counted and the walk continues.
func (r *Regeocoder) Run(ctx context.Context) (*GeocodeCounts, error) {
	stats, err := r.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting assets: %w", err)
	}
	if stats.TotalAssets == 0 {
		fmt.Fprintf(r.progress, "Store is empty (0 assets)\n")
		return &GeocodeCounts{}, nil
	}

	scope := "assets without a location"
	if r.config.All {
		scope = "all addressed assets"
	}
	fmt.Fprintf(r.progress, "Re-geocoding %s, scanning %d assets (batch size: %d)\n",
		scope, stats.TotalAssets, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, stats.TotalAssets, r.config.ReportInterval)
	tracker.Start()

	counts := &GeocodeCounts{}
	err = r.iterator.ForEach(ctx, 0, func(assets []*core.Asset) error {
		for _, asset := range assets {
			if !r.wants(asset) {
				continue
			}
			if err := r.regeocodeOne(ctx, asset, counts); err != nil {
				return err
			}
		}
		tracker.Increment(len(assets))
		return nil
	})
	if err != nil {
		return nil, err
	}

	tracker.Finish()

	fmt.Fprintf(r.progress, "Re-geocoding complete in %v: %d attempted, %d geocoded, %d no match, %d unavailable\n",
		tracker.Elapsed().Round(time.Second), counts.Examined, counts.Geocoded, counts.NoMatch, counts.Unavailable)

	return counts, nil
}

// wants reports whether the run should attempt this asset.
func (r *Regeocoder) wants(asset *core.Asset) bool {
	if strings.TrimSpace(asset.Address) == "" {
		return false
	}
	if asset.Location != nil && !r.config.All {
		return false
	}
	return true
}

// regeocodeOne resolves a single asset's address and stores the result.
// A no-match answer leaves the asset untouched; coordinates are never
// cleared on the service's say-so. Only storage failures and context
// cancellation abort the run.
func (r *Regeocoder) regeocodeOne(ctx context.Context, asset *core.Asset, counts *GeocodeCounts) error {
	counts.Examined++

	loc, err := r.geocoder.Geocode(ctx, asset.Address)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.logger.Warn("geocoding unavailable, leaving asset as is",
			"id", asset.Id, "address", asset.Address, "error", err)
		counts.Unavailable++
		return nil
	}
	if loc == nil {
		r.logger.Debug("no geocoding match", "id", asset.Id, "address", asset.Address)
		counts.NoMatch++
		return nil
	}

	if err := r.repo.UpdateLocation(ctx, asset.Id, loc); err != nil {
		return fmt.Errorf("updating asset %d location: %w", asset.Id, err)
	}

	r.logger.Info("asset geocoded", "id", asset.Id,
		"latitude", loc.Latitude, "longitude", loc.Longitude)
	counts.Geocoded++
	return nil
}
