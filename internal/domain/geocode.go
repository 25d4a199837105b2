package domain

import (
	"context"
	"log/slog"
)

// Geo source labels recorded on enriched assessments.
const (
	GeoSourceForward  = "forward"
	GeoSourceReverse  = "reverse"
	GeoSourceOriginal = "original"
	GeoSourceFailed   = "failed"
)

// EnrichWithGeocoding attempts to enrich an assessment with geocoding data.
// If geocoder is nil the assessment is returned untouched; if geocoding
// fails, GeoSource records the failure and scoring output is kept.
func EnrichWithGeocoding(ctx context.Context, site SiteAssessment, geocoder Geocoder, logger *slog.Logger) SiteAssessment {
	if geocoder == nil {
		return site
	}

	hasCoords := site.Geo.Lat != 0 || site.Geo.Lon != 0

	// Forward geocode: city name → coordinates (when coords are missing).
	if !hasCoords && site.City != "" {
		result, err := geocoder.ForwardGeocode(ctx, site.City, site.State)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"site_id", site.ID,
				"city", site.City,
				"state", site.State,
				"error", err,
			)
			site.GeoSource = GeoSourceFailed
			return site
		}
		if result.Lat != 0 || result.Lon != 0 {
			site.Geo = Geo{Lat: result.Lat, Lon: result.Lon}
			site.FormattedAddress = result.FormattedAddress
			site.PlaceName = result.PlaceName
			site.GeoConfidence = result.Confidence
			site.GeoSource = GeoSourceForward
			return site
		}
		site.GeoSource = GeoSourceOriginal
		return site
	}

	// Reverse geocode: coordinates → place details.
	if hasCoords {
		result, err := geocoder.ReverseGeocode(ctx, site.Geo.Lat, site.Geo.Lon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"site_id", site.ID,
				"lat", site.Geo.Lat,
				"lon", site.Geo.Lon,
				"error", err,
			)
			site.GeoSource = GeoSourceFailed
			return site
		}
		if result.Found() {
			site.FormattedAddress = result.FormattedAddress
			site.PlaceName = result.PlaceName
			site.GeoConfidence = result.Confidence
			site.GeoSource = GeoSourceReverse
			return site
		}
	}

	site.GeoSource = GeoSourceOriginal
	return site
}
