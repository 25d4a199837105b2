package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrAmountOutOfRange reports a structure count or currency amount that does
// not fit in a signed 64-bit integer.
var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	minAmount = decimal.NewFromInt(math.MinInt64)
	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// DefaultBuildingType is used when a building type is missing or unknown.
const DefaultBuildingType = "Residential"

var (
	// buildingBaseRates is the replacement cost per square foot in INR.
	buildingBaseRates = map[string]int64{
		"Residential": 2000,
		"Commercial":  3500,
		"High-rise":   4000,
		"School":      3000,
		"Hospital":    5000,
		"Industrial":  2500,
	}

	// buildingMinimumValues floors the estimate per building type.
	buildingMinimumValues = map[string]int64{
		"Residential": 1_000_000,
		"Commercial":  2_500_000,
		"High-rise":   10_000_000,
		"School":      5_000_000,
		"Hospital":    10_000_000,
		"Industrial":  5_000_000,
	}
)

// FinancialImpact is the economic loss estimate for a group of structures.
type FinancialImpact struct {
	BuildingValue     float64 `json:"building_value"`
	TotalLoss         int64   `json:"total_loss"`
	InsuranceRecovery int64   `json:"insurance_recovery"`
	NetLoss           int64   `json:"net_loss"`
	Defaulted         bool    `json:"defaulted,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

// EstimateBuildingValue multiplies the per-type base rate by the floor area
// and applies the per-type minimum value.
func EstimateBuildingValue(buildingType string, sizeSqft float64) float64 {
	if math.IsNaN(sizeSqft) || math.IsInf(sizeSqft, 0) {
		sizeSqft = 0
	}
	rate, ok := buildingBaseRates[buildingType]
	if !ok {
		rate = buildingBaseRates[DefaultBuildingType]
	}
	minimum, ok := buildingMinimumValues[buildingType]
	if !ok {
		minimum = buildingMinimumValues[DefaultBuildingType]
	}

	value := decimal.NewFromInt(rate).Mul(decimal.NewFromFloat(sizeSqft))
	floor := decimal.NewFromInt(minimum)
	if value.LessThan(floor) {
		value = floor
	}
	return value.InexactFloat64()
}

// CalculateFinancialImpact returns the total loss, insurance recovery and
// net loss for numStructures buildings of the given value, each damaged by
// damagePercent. Amounts are rounded to whole currency units; an amount
// beyond the int64 range yields ErrAmountOutOfRange.
func CalculateFinancialImpact(damagePercent, buildingValue float64, numStructures int64, insuranceCoverage float64) (total, recovery, net int64, err error) {
	perStructure := decimal.NewFromFloat(buildingValue).
		Mul(decimal.NewFromFloat(damagePercent)).
		Div(decimal.NewFromInt(100))

	totalLoss := perStructure.Mul(decimal.NewFromInt(numStructures))
	insurance := totalLoss.Mul(decimal.NewFromFloat(insuranceCoverage))
	netLoss := totalLoss.Sub(insurance)

	amounts := [3]int64{}
	for i, amount := range []decimal.Decimal{totalLoss, insurance, netLoss} {
		rounded := amount.Round(0)
		if rounded.LessThan(minAmount) || rounded.GreaterThan(maxAmount) {
			return 0, 0, 0, fmt.Errorf("loss %s: %w", rounded.String(), ErrAmountOutOfRange)
		}
		amounts[i] = rounded.IntPart()
	}
	return amounts[0], amounts[1], amounts[2], nil
}

// EvaluateFinancialImpact reads the financial fields of a site record.
// It returns nil when the record carries no Damage_Percent. Malformed
// fields produce a zero impact marked as defaulted.
func EvaluateFinancialImpact(rec SiteRecord) *FinancialImpact {
	if _, ok := rec[FieldDamagePercent]; !ok {
		return nil
	}

	impact, err := financialImpact(rec)
	if err != nil {
		return &FinancialImpact{Defaulted: true, Reason: err.Error()}
	}
	return impact
}

func financialImpact(rec SiteRecord) (*FinancialImpact, error) {
	damage, err := floatField(rec, FieldDamagePercent, 0)
	if err != nil {
		return nil, err
	}

	value, err := buildingValue(rec)
	if err != nil {
		return nil, err
	}

	structures, err := floatField(rec, FieldNumStructures, 1)
	if err != nil {
		return nil, err
	}
	if structures != math.Trunc(structures) {
		return nil, fmt.Errorf("%s=%g: %w", FieldNumStructures, structures, ErrNotNumeric)
	}
	if math.Abs(structures) >= 1<<63 {
		return nil, fmt.Errorf("%s=%g: %w", FieldNumStructures, structures, ErrAmountOutOfRange)
	}

	coverage, err := floatField(rec, FieldInsuranceCoverage, 0)
	if err != nil {
		return nil, err
	}

	total, recovery, net, err := CalculateFinancialImpact(damage, value, int64(structures), coverage)
	if err != nil {
		return nil, err
	}
	return &FinancialImpact{
		BuildingValue:     value,
		TotalLoss:         total,
		InsuranceRecovery: recovery,
		NetLoss:           net,
	}, nil
}

// buildingValue prefers an explicit Building_Value and otherwise estimates
// one from the building type and size.
func buildingValue(rec SiteRecord) (float64, error) {
	if _, ok := rec[FieldBuildingValue]; ok {
		return floatField(rec, FieldBuildingValue, 0)
	}
	size, err := floatField(rec, FieldBuildingSizeSqft, 0)
	if err != nil {
		return 0, err
	}
	return EstimateBuildingValue(stringField(rec, FieldBuildingType), size), nil
}

// RecoveryMonth is one step of a recovery cost schedule.
type RecoveryMonth struct {
	Month          int     `json:"month" yaml:"month"`
	MonthlyCost    float64 `json:"monthly_cost" yaml:"monthly_cost"`
	CumulativeCost float64 `json:"cumulative_cost" yaml:"cumulative_cost"`
}

// RecoveryTimeline spreads totalLoss over months using a logarithmic curve:
// by month m the cumulative share is min(100%, 30*log10(m+1)%).
func RecoveryTimeline(totalLoss float64, months int) []RecoveryMonth {
	if months < 0 {
		months = 0
	}
	timeline := make([]RecoveryMonth, 0, months+1)
	previous := 0.0
	for m := 0; m <= months; m++ {
		cumulative := 0.0
		if m > 0 {
			pct := math.Min(100, 30*math.Log10(float64(m+1)))
			cumulative = totalLoss * pct / 100
		}
		timeline = append(timeline, RecoveryMonth{
			Month:          m,
			MonthlyCost:    cumulative - previous,
			CumulativeCost: cumulative,
		})
		previous = cumulative
	}
	return timeline
}
