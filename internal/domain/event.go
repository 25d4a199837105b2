package domain

import (
	"context"
	"time"
)

// Record keys recognized in a site record. The names follow the column
// headers of the seismic risk dataset the upstream collector publishes.
const (
	FieldCity              = "City"
	FieldState             = "State"
	FieldLatitude          = "Latitude"
	FieldLongitude         = "Longitude"
	FieldAverageMagnitude  = "Average_Magnitude"
	FieldDepthKm           = "Depth_km"
	FieldFaultActivity     = "Nearby_Fault_Activity"
	FieldSoilType          = "Soil_Type"
	FieldFrequencyPastEQ   = "Frequency_Past_EQ"
	FieldTimeSinceLast     = "Time_Since_Last_Event"
	FieldBuildingType      = "Building_Type"
	FieldBuildingSizeSqft  = "Building_Size_sqft"
	FieldBuildingValue     = "Building_Value"
	FieldDamagePercent     = "Damage_Percent"
	FieldNumStructures     = "Num_Structures"
	FieldInsuranceCoverage = "Insurance_Coverage"
)

// SiteRecord is a loosely typed input record keyed by field name.
// Values arrive as JSON numbers, strings or CSV cells and are coerced on read.
type SiteRecord map[string]any

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// HazardInputs records the resolved inputs and factors used for the hazard score.
type HazardInputs struct {
	Magnitude     float64 `json:"magnitude"`
	DepthKm       float64 `json:"depth_km"`
	FaultActivity string  `json:"fault_activity"`
	FaultFactor   float64 `json:"fault_factor"`
	SoilType      string  `json:"soil_type"`
	SoilFactor    float64 `json:"soil_factor"`
}

// HazardResult is the serialized hazard outcome of an assessment.
type HazardResult struct {
	Score     float64     `json:"score"`
	Level     HazardLevel `json:"level"`
	Defaulted bool        `json:"defaulted,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// EventResult is the serialized event-likelihood outcome of an assessment.
type EventResult struct {
	Score     float64 `json:"score"`
	Defaulted bool    `json:"defaulted,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	// Zone is the risk propensity zone within a batch, set by AssignEventZones.
	Zone *int `json:"zone,omitempty"`
}

// SiteAssessment is the domain-rich representation of an assessed site.
type SiteAssessment struct {
	ID        string           `json:"id"`
	City      string           `json:"city,omitempty"`
	State     string           `json:"state,omitempty"`
	Geo       Geo              `json:"geo,omitempty"`
	Inputs    HazardInputs     `json:"inputs"`
	Hazard    HazardResult     `json:"hazard"`
	Event     *EventResult     `json:"event,omitempty"`
	Financial *FinancialImpact `json:"financial,omitempty"`

	// Geocoding enrichment fields.
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "forward", "reverse", "original", "failed"

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
