// Package annuity provides equal-payment (annuity) loan arithmetic.
package annuity

import (
	"math"

	"github.com/ghsales/discount-engine/pkg/constants"
)

// MonthlyRate converts an annual rate given in percent into a monthly
// fractional rate, e.g. 16.5 -> 0.01375.
func MonthlyRate(annualPercent float64) float64 {
	return annualPercent / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// Payment returns the fixed monthly payment that repays principal over
// termMonths at the given monthly rate, i.e. the payment solving
// principal = payment * (1 - (1+r)^-n) / r.
func Payment(principal, monthlyRate float64, termMonths int) float64 {
	if termMonths <= 0 {
		return 0
	}
	if monthlyRate == 0 {
		// For zero interest, simply divide the principal by term
		return principal / float64(termMonths)
	}
	return principal * monthlyRate / (1 - math.Pow(1+monthlyRate, -float64(termMonths)))
}

// TotalPaid returns the sum of all payments for the loan.
func TotalPaid(principal, monthlyRate float64, termMonths int) float64 {
	return Payment(principal, monthlyRate, termMonths) * float64(termMonths)
}
