package geo

import (
	"context"

	"github.com/ffirst2551/mercil/core"
)

// Geocoder resolves free-form addresses to coordinates.
//
// Implementations distinguish two negative outcomes: a (nil, nil) return
// means the service answered but found no match for the address, while an
// error wrapping ErrUnavailable means the service could not be reached.
// Callers that only care about "no location" may treat both the same;
// maintenance jobs retry only the latter.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*core.Location, error)
}

// GeocoderFunc adapts a plain function to the Geocoder interface, the way
// http.HandlerFunc does for handlers. Useful for fixed or scripted
// geocoders in tests.
type GeocoderFunc func(ctx context.Context, address string) (*core.Location, error)

// Geocode calls f.
func (f GeocoderFunc) Geocode(ctx context.Context, address string) (*core.Location, error) {
	return f(ctx, address)
}
