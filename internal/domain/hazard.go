package domain

import (
	"fmt"
	"math"
)

// HazardLevel is an ordinal label derived from a hazard score.
type HazardLevel string

const (
	LevelLow      HazardLevel = "Low"
	LevelModerate HazardLevel = "Moderate"
	LevelHigh     HazardLevel = "High"
	LevelVeryHigh HazardLevel = "Very High"
)

// Score bounds and defaults.
const (
	MinHazardScore = 0.0
	MaxHazardScore = 10.0

	DefaultFaultActivity = "Low"
	DefaultSoilType      = "Soil"
)

// Hazard formula weights.
const (
	magnitudeWeight = 1.4
	depthScale      = 10.0
	depthWeight     = 0.6
	faultWeight     = 1.5
)

var (
	faultActivityFactors = map[string]float64{
		"Low":    0.6,
		"Medium": 0.8,
		"High":   1.0,
	}

	soilAmplificationFactors = map[string]float64{
		"Rock":      0.8,
		"Stiff":     0.9,
		"Soil":      1.0,
		"Very Soft": 1.2,
	}
)

// HazardScore is the outcome of scoring a site record. When Defaulted is
// true, Value holds the fail-soft default and Reason says why.
type HazardScore struct {
	Value     float64
	Inputs    HazardInputs
	Defaulted bool
	Reason    error
}

// CalculateHazardScore reduces a site record to a score in [0, 10] rounded
// to two decimals. Malformed input yields 0.
func CalculateHazardScore(rec SiteRecord) float64 {
	return EvaluateHazardScore(rec).Value
}

// EvaluateHazardScore computes the hazard score and reports whether the
// result was computed or defaulted.
func EvaluateHazardScore(rec SiteRecord) HazardScore {
	inputs := resolveHazardInputs(rec)

	magnitude, err := floatField(rec, FieldAverageMagnitude, 0)
	if err != nil {
		return defaultedScore(inputs, err)
	}
	depth, err := floatField(rec, FieldDepthKm, 0)
	if err != nil {
		return defaultedScore(inputs, err)
	}
	inputs.Magnitude = magnitude
	inputs.DepthKm = depth

	if depth+1 == 0 {
		return defaultedScore(inputs, fmt.Errorf("%s=%g: %w", FieldDepthKm, depth, ErrInvalidDepth))
	}

	magnitudeComponent := magnitude * magnitudeWeight
	depthComponent := depthScale / (depth + 1) * depthWeight
	faultComponent := inputs.FaultFactor * faultWeight

	score := (magnitudeComponent + depthComponent + faultComponent) * inputs.SoilFactor
	score = math.Min(MaxHazardScore, math.Max(MinHazardScore, score))

	return HazardScore{Value: roundTo(score, 2), Inputs: inputs}
}

// resolveHazardInputs maps the qualitative fields onto their factors,
// falling back to Low fault activity and Soil for missing or unknown values.
func resolveHazardInputs(rec SiteRecord) HazardInputs {
	fault := stringField(rec, FieldFaultActivity)
	faultFactor, ok := faultActivityFactors[fault]
	if !ok {
		fault = DefaultFaultActivity
		faultFactor = faultActivityFactors[fault]
	}

	soil := stringField(rec, FieldSoilType)
	soilFactor, ok := soilAmplificationFactors[soil]
	if !ok {
		soil = DefaultSoilType
		soilFactor = soilAmplificationFactors[soil]
	}

	return HazardInputs{
		FaultActivity: fault,
		FaultFactor:   faultFactor,
		SoilType:      soil,
		SoilFactor:    soilFactor,
	}
}

func defaultedScore(inputs HazardInputs, reason error) HazardScore {
	return HazardScore{Value: 0, Inputs: inputs, Defaulted: true, Reason: reason}
}

// CategorizeHazardLevel maps a score to its hazard level. Values that do not
// coerce to a number are reported as Low.
func CategorizeHazardLevel(score any) HazardLevel {
	level, _ := EvaluateHazardLevel(score)
	return level
}

// EvaluateHazardLevel is CategorizeHazardLevel with the coercion error exposed.
// +Inf lands in the unbounded Very High bracket. NaN is a coercion failure and
// so reads as Low, deliberately unlike a comparison chain where NaN fails
// every test and falls through to Very High.
func EvaluateHazardLevel(score any) (HazardLevel, error) {
	f, err := toNumber(score)
	if err != nil {
		return LevelLow, fmt.Errorf("hazard score: %w", err)
	}
	return LevelForScore(f), nil
}

// LevelForScore applies the fixed thresholds. Each bracket excludes its
// upper bound; Very High is unbounded.
//   - <3.5 Low, <6.0 Moderate, <8.0 High, else Very High
func LevelForScore(score float64) HazardLevel {
	switch {
	case score < 3.5:
		return LevelLow
	case score < 6.0:
		return LevelModerate
	case score < 8.0:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}
