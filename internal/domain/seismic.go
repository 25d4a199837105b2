package domain

import (
	"fmt"
	"math"
)

// DefaultEventWeight scales fault activity in the event likelihood score.
const DefaultEventWeight = 1.5

// DefaultEventScore is returned when the event score cannot be computed.
const DefaultEventScore = -1.0

var eventActivityScores = map[string]float64{
	"Low":    1,
	"Medium": 2,
	"High":   3,
}

// EventScore is the log-probability that an earthquake occurs at a site,
// derived from historical frequency, fault activity and recency.
type EventScore struct {
	Value     float64
	Defaulted bool
	Reason    error
}

// EvaluateEventScore computes
//
//	ln((frequency + weight*activity) / (yearsSinceLast + 1))
//
// rounded to four decimals. Activity is 1, 2 or 3 for Low, Medium and High
// fault activity (1 when unrecognized). Missing or malformed inputs and an
// undefined logarithm produce DefaultEventScore.
func EvaluateEventScore(rec SiteRecord, weight float64) EventScore {
	activity, ok := eventActivityScores[stringField(rec, FieldFaultActivity)]
	if !ok {
		activity = 1
	}

	frequency, err := requiredFloat(rec, FieldFrequencyPastEQ)
	if err != nil {
		return defaultedEvent(err)
	}
	sinceLast, err := requiredFloat(rec, FieldTimeSinceLast)
	if err != nil {
		return defaultedEvent(err)
	}

	denominator := sinceLast + 1
	ratio := (frequency + weight*activity) / denominator
	if denominator == 0 || !(ratio > 0) || math.IsInf(ratio, 0) {
		return defaultedEvent(fmt.Errorf("ratio %g: %w", ratio, ErrUndefinedScore))
	}

	score := math.Log(ratio)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return defaultedEvent(fmt.Errorf("log %g: %w", ratio, ErrUndefinedScore))
	}
	return EventScore{Value: roundTo(score, 4)}
}

func requiredFloat(rec SiteRecord, key string) (float64, error) {
	if _, ok := rec[key]; !ok {
		return 0, fmt.Errorf("%s: missing: %w", key, ErrNotNumeric)
	}
	return floatField(rec, key, 0)
}

func defaultedEvent(reason error) EventScore {
	return EventScore{Value: DefaultEventScore, Defaulted: true, Reason: reason}
}
