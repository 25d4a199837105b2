package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatCSV  = "csv"
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatCSV:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want json, yaml or csv)", format)
	}
}

// assessmentRow is the flat view of an assessment used for YAML and CSV.
type assessmentRow struct {
	ID            string   `yaml:"id"`
	City          string   `yaml:"city"`
	State         string   `yaml:"state,omitempty"`
	Magnitude     float64  `yaml:"magnitude"`
	DepthKm       float64  `yaml:"depth_km"`
	FaultActivity string   `yaml:"fault_activity"`
	SoilType      string   `yaml:"soil_type"`
	HazardScore   float64  `yaml:"hazard_score"`
	HazardLevel   string   `yaml:"hazard_level"`
	Defaulted     bool     `yaml:"defaulted,omitempty"`
	Reason        string   `yaml:"reason,omitempty"`
	EventScore    *float64 `yaml:"event_score,omitempty"`
	EventZone     *int     `yaml:"event_zone,omitempty"`
	TotalLoss     *int64   `yaml:"total_loss,omitempty"`
	NetLoss       *int64   `yaml:"net_loss,omitempty"`
	ProcessedAt   string   `yaml:"processed_at"`
}

var csvHeader = []string{
	"id", "city", "state", "magnitude", "depth_km", "fault_activity", "soil_type",
	"hazard_score", "hazard_level", "defaulted", "reason",
	"event_score", "event_zone", "total_loss", "net_loss", "processed_at",
}

func toRow(site domain.SiteAssessment) assessmentRow {
	row := assessmentRow{
		ID:            site.ID,
		City:          site.City,
		State:         site.State,
		Magnitude:     site.Inputs.Magnitude,
		DepthKm:       site.Inputs.DepthKm,
		FaultActivity: site.Inputs.FaultActivity,
		SoilType:      site.Inputs.SoilType,
		HazardScore:   site.Hazard.Score,
		HazardLevel:   string(site.Hazard.Level),
		Defaulted:     site.Hazard.Defaulted,
		Reason:        site.Hazard.Reason,
		ProcessedAt:   site.ProcessedAt.UTC().Format(time.RFC3339),
	}
	if site.Event != nil {
		score := site.Event.Score
		row.EventScore = &score
		row.EventZone = site.Event.Zone
	}
	if site.Financial != nil {
		total, net := site.Financial.TotalLoss, site.Financial.NetLoss
		row.TotalLoss = &total
		row.NetLoss = &net
	}
	return row
}

func (r assessmentRow) record() []string {
	return []string{
		r.ID, r.City, r.State,
		formatFloat(r.Magnitude), formatFloat(r.DepthKm),
		r.FaultActivity, r.SoilType,
		strconv.FormatFloat(r.HazardScore, 'f', 2, 64), r.HazardLevel,
		strconv.FormatBool(r.Defaulted), r.Reason,
		optional(r.EventScore, func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }),
		optional(r.EventZone, strconv.Itoa),
		optional(r.TotalLoss, func(v int64) string { return strconv.FormatInt(v, 10) }),
		optional(r.NetLoss, func(v int64) string { return strconv.FormatInt(v, 10) }),
		r.ProcessedAt,
	}
}

func writeAssessments(w io.Writer, format string, sites []domain.SiteAssessment) error {
	switch format {
	case formatYAML:
		rows := make([]assessmentRow, 0, len(sites))
		for _, s := range sites {
			rows = append(rows, toRow(s))
		}
		return writeYAML(w, rows)
	case formatCSV:
		records := make([][]string, 0, len(sites)+1)
		records = append(records, csvHeader)
		for _, s := range sites {
			records = append(records, toRow(s).record())
		}
		return writeCSV(w, records)
	default:
		return writeJSON(w, sites)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func writeCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optional[T any](v *T, format func(T) string) string {
	if v == nil {
		return ""
	}
	return format(*v)
}
