// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/microloan/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// IsZero checks if a value is effectively zero (within one cent)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// Clamp bounds val to [lo, hi].
func Clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(val, hi))
}

// Percent converts a percentage such as 12.5 into a rate such as 0.125.
func Percent(percentage float64) float64 {
	return percentage / constants.PercentageMultiplier
}

// Ratio returns value as a percentage of total, or 0 for an empty total.
func Ratio(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return value / total * constants.PercentageMultiplier
}
