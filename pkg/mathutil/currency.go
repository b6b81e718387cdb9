// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/ghsales/discount-engine/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Used for making logical comparisons and display only.
func Round(val float64) float64 {
	return math.Round(val*100) / 100
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// SameRate reports whether two rates differ by less than constants.RateEpsilon.
func SameRate(a, b float64) bool {
	return math.Abs(a-b) < constants.RateEpsilon
}

// FloorPercent floors a percentage to the nearest whole number below it.
// Money is never floored directly; callers recompute amounts from the result.
func FloorPercent(percent float64) float64 {
	return math.Floor(percent)
}

// DiscountPercent returns by how many percent value is below base.
func DiscountPercent(value, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (1 - value/base) * constants.PercentageMultiplier
}

// ApplyDiscountPercent returns base reduced by percent.
func ApplyDiscountPercent(base, percent float64) float64 {
	return base * (1 - percent/constants.PercentageMultiplier)
}

// NormalizeRate converts a value given either as a fraction (0.05) or as a
// percentage (5) into a fraction.
func NormalizeRate(value float64) float64 {
	if value > 1.0 {
		return value / constants.PercentageMultiplier
	}
	return value
}
