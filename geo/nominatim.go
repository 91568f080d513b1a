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


package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ffirst2551/mercil/core"
)

const (
	defaultBaseURL    = "https://nominatim.openstreetmap.org"
	defaultUserAgent  = "mercil_geocoder"
	defaultMaxRetries = 3

	// Nominatim's usage policy allows at most one request per second.
	defaultMinInterval = time.Second

	requestTimeout = 10 * time.Second
)

// nominatimResult is one entry of a /search response. The service returns
// coordinates as strings.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimGeocoder resolves addresses through the OpenStreetMap Nominatim
// HTTP API. Requests are serialized and spaced at least minInterval apart;
// transient failures retry with exponential backoff.
type NominatimGeocoder struct {
	baseURL        string
	userAgent      string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
	minInterval    time.Duration
	logger         *slog.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

var _ Geocoder = (*NominatimGeocoder)(nil)

// NominatimOption is a functional option for configuring a NominatimGeocoder.
type NominatimOption func(*NominatimGeocoder)

// WithBaseURL points the geocoder at a different Nominatim endpoint,
// such as a self-hosted instance.
func WithBaseURL(u string) NominatimOption {
	return func(g *NominatimGeocoder) {
		g.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithUserAgent sets the User-Agent header. Nominatim requires one that
// identifies the application.
func WithUserAgent(ua string) NominatimOption {
	return func(g *NominatimGeocoder) {
		g.userAgent = ua
	}
}

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(c *http.Client) NominatimOption {
	return func(g *NominatimGeocoder) {
		g.client = c
	}
}

// WithMaxRetries sets how many attempts a single Geocode call makes.
func WithMaxRetries(n int) NominatimOption {
	return func(g *NominatimGeocoder) {
		g.maxRetries = n
	}
}

// WithRetryBaseDelay sets the first retry delay; it doubles per attempt.
func WithRetryBaseDelay(d time.Duration) NominatimOption {
	return func(g *NominatimGeocoder) {
		g.retryBaseDelay = d
	}
}

// WithMinInterval sets the minimum spacing between requests.
func WithMinInterval(d time.Duration) NominatimOption {
	return func(g *NominatimGeocoder) {
		g.minInterval = d
	}
}

// NewNominatimGeocoder creates a geocoder with the public OpenStreetMap
// endpoint and its rate limits as defaults.
func NewNominatimGeocoder(opts ...NominatimOption) *NominatimGeocoder {
	g := &NominatimGeocoder{
		baseURL:        defaultBaseURL,
		userAgent:      defaultUserAgent,
		client:         &http.Client{Timeout: requestTimeout},
		maxRetries:     defaultMaxRetries,
		retryBaseDelay: time.Second,
		minInterval:    defaultMinInterval,
		logger:         slog.Default().With("component", "geocoder"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode resolves an address to coordinates. A blank address and an
// address the service doesn't know both return (nil, nil). Transient
// service failures are retried; once attempts are exhausted the error
// wraps ErrUnavailable.
func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*core.Location, error) {
	if strings.TrimSpace(address) == "" {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		loc, found, err := g.lookup(ctx, address)
		if err == nil {
			if !found {
				g.logger.Debug("no geocoding match", "address", address)
				return nil, nil
			}
			return loc, nil
		}
		lastErr = err
		g.logger.Warn("geocoding attempt failed",
			"address", address, "attempt", attempt, "maxRetries", g.maxRetries, "error", err)

		if attempt == g.maxRetries {
			break
		}

		// Exponential backoff: retryBaseDelay * 2^(attempt-1)
		delay := g.retryBaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// lookup performs one throttled request. found is false when the service
// answered with no results.
func (g *NominatimGeocoder) lookup(ctx context.Context, address string) (loc *core.Location, found bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if wait := g.minInterval - time.Since(g.lastRequest); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, ctx.Err()
		case <-timer.C:
		}
	}
	g.lastRequest = time.Now()

	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, false, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parsing latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parsing longitude %q: %w", results[0].Lon, err)
	}

	loc = &core.Location{Latitude: lat, Longitude: lon}
	if err := core.ValidateLocation(loc); err != nil {
		return nil, false, err
	}
	return loc, true, nil
}
