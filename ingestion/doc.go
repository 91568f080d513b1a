// Package ingestion converts raw asset descriptions into stored records.
//
// The Pipeline type runs each batch item through a linear flow:
//   - Geocode the address into coordinates (optional; failure is tolerated)
//   - Embed the name and description into a text vector
//   - Insert the finished asset into storage
//
// Items process concurrently on a bounded worker pool, but a batch run is
// synchronous: Run returns once every item has an outcome. Per-item
// failures are logged and reported as skips; a bad record never aborts the
// rest of the batch. Geocoding is safe to parallelize because the geocoder
// serializes its own requests.
package ingestion
