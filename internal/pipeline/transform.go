package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/couchcryptid/quake-hazard-etl/internal/observability"
)

// SiteTransformer implements Transformer using domain assessment functions
// with optional geocoding enrichment.
type SiteTransformer struct {
	geocoder    domain.Geocoder
	eventWeight float64
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewTransformer creates a SiteTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, eventWeight float64, metrics *observability.Metrics, logger *slog.Logger) *SiteTransformer {
	return &SiteTransformer{
		geocoder:    geocoder,
		eventWeight: eventWeight,
		metrics:     metrics,
		logger:      logger,
	}
}

// Transform parses, assesses and enriches one raw site record. Only an
// unparseable payload is an error; malformed fields degrade to defaults.
func (t *SiteTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.SiteAssessment, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.SiteAssessment{}, err
	}

	site := t.Assess(ctx, rec)
	site.RawPayload = raw.Value
	site = domain.EnrichWithGeocoding(ctx, site, t.geocoder, t.logger)

	return site, nil
}

// Assess scores a decoded site record without geocoding. The HTTP adapter
// uses it for on-demand assessments.
func (t *SiteTransformer) Assess(_ context.Context, rec domain.SiteRecord) domain.SiteAssessment {
	site := domain.AssessSite(rec, t.eventWeight)
	t.observe(site)
	return site
}

func (t *SiteTransformer) observe(site domain.SiteAssessment) {
	t.metrics.HazardScores.Observe(site.Hazard.Score)
	t.metrics.HazardLevels.WithLabelValues(string(site.Hazard.Level)).Inc()

	if site.Hazard.Defaulted {
		t.metrics.DefaultedScores.WithLabelValues("hazard").Inc()
		t.logger.Debug("hazard score defaulted", "site_id", site.ID, "city", site.City, "reason", site.Hazard.Reason)
	}
	if site.Event != nil && site.Event.Defaulted {
		t.metrics.DefaultedScores.WithLabelValues("event").Inc()
	}
	if site.Financial != nil && site.Financial.Defaulted {
		t.metrics.DefaultedScores.WithLabelValues("financial").Inc()
	}
}
