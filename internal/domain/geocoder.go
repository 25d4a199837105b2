package domain

import "context"

// GeocodingResult is a single place match from a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // provider relevance, 0.0 to 1.0
}

// Found reports whether the provider matched a place. Providers answer an
// unknown place with an empty result rather than an error.
func (r GeocodingResult) Found() bool {
	return r.FormattedAddress != ""
}

// Geocoder resolves site names to coordinates and back. Site enrichment
// works against this interface so the scoring path never depends on a
// particular provider.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, name, state string) (GeocodingResult, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
