package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNotNumeric reports a value that cannot be coerced to a float.
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrInvalidDepth reports a depth that makes the depth term undefined (-1 km).
	ErrInvalidDepth = errors.New("depth makes hazard denominator zero")

	// ErrUndefinedScore reports an event score whose logarithm is undefined.
	ErrUndefinedScore = errors.New("event score is undefined")
)

// toFloat is toNumber restricted to finite values. Record fields go through
// it, so an infinite input can never survive into an assessment and make it
// unencodable as JSON.
func toFloat(v any) (float64, error) {
	f, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%g: %w", f, ErrNotNumeric)
	}
	return f, nil
}

// toNumber coerces JSON numbers, Go numeric kinds, booleans and numeric
// strings to float64. NaN is rejected; infinities pass.
func toNumber(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		parsed, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", string(x), ErrNotNumeric)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", x, ErrNotNumeric)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%T: %w", v, ErrNotNumeric)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("NaN: %w", ErrNotNumeric)
	}
	return f, nil
}

// floatField reads key from rec, returning def when the key is absent.
// A present but non-numeric value is an error naming the field.
func floatField(rec SiteRecord, key string, def float64) (float64, error) {
	v, ok := rec[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// stringField reads key from rec as a string. Absent or non-string values
// yield the empty string.
func stringField(rec SiteRecord, key string) string {
	s, _ := rec[key].(string)
	return s
}

// optionalFloat parses a float field and reports whether it was usable.
func optionalFloat(rec SiteRecord, key string) (float64, bool) {
	v, ok := rec[key]
	if !ok {
		return 0, false
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
