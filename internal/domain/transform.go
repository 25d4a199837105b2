package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// siteNamespace scopes the name-based UUIDs generated for site assessments.
var siteNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:quake-hazard-etl:site"))

// ParseRawEvent decodes a RawEvent's value into a SiteRecord. Numbers are
// kept as json.Number so coercion sees exactly what the producer sent.
func ParseRawEvent(raw RawEvent) (SiteRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()

	var rec SiteRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("parse raw event: %w", err)
	}
	if rec == nil {
		return nil, errors.New("parse raw event: payload is not a JSON object")
	}
	return rec, nil
}

// AssessSite scores a site record and assembles its assessment. Hazard,
// event and financial results each degrade independently; a malformed
// field in one never prevents the others from being computed.
func AssessSite(rec SiteRecord, eventWeight float64) SiteAssessment {
	hazard := EvaluateHazardScore(rec)

	lat, _ := optionalFloat(rec, FieldLatitude)
	lon, _ := optionalFloat(rec, FieldLongitude)

	assessment := SiteAssessment{
		ID:        generateID(rec),
		City:      strings.TrimSpace(stringField(rec, FieldCity)),
		State:     strings.TrimSpace(stringField(rec, FieldState)),
		Geo:       Geo{Lat: lat, Lon: lon},
		Inputs:    hazard.Inputs,
		Hazard:    hazardResult(hazard),
		Financial: EvaluateFinancialImpact(rec),
	}

	if _, ok := rec[FieldFrequencyPastEQ]; ok {
		event := EvaluateEventScore(rec, eventWeight)
		assessment.Event = &EventResult{Score: event.Value, Defaulted: event.Defaulted}
		if event.Reason != nil {
			assessment.Event.Reason = event.Reason.Error()
		}
	}

	assessment.ProcessedAt = clock.Now()
	return assessment
}

func hazardResult(score HazardScore) HazardResult {
	res := HazardResult{
		Score:     score.Value,
		Level:     LevelForScore(score.Value),
		Defaulted: score.Defaulted,
	}
	if score.Reason != nil {
		res.Reason = score.Reason.Error()
	}
	return res
}

// generateID produces a deterministic ID from the site's identifying and
// scoring fields, so replaying the same record yields the same ID.
func generateID(rec SiteRecord) string {
	keys := []string{
		FieldCity, FieldState, FieldLatitude, FieldLongitude,
		FieldAverageMagnitude, FieldDepthKm, FieldFaultActivity, FieldSoilType,
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		if v, ok := rec[k]; ok {
			parts[i] = fmt.Sprint(v)
		}
	}
	return uuid.NewSHA1(siteNamespace, []byte(strings.Join(parts, "|"))).String()
}

// SerializeAssessment marshals an assessment into an output event keyed by
// its ID, with the hazard level and processing time as headers.
func SerializeAssessment(a SiteAssessment) (OutputEvent, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize site assessment: %w", err)
	}
	return OutputEvent{
		Key:   []byte(a.ID),
		Value: data,
		Headers: map[string]string{
			"hazard_level": string(a.Hazard.Level),
			"processed_at": a.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
