package annuity

import (
	"math"
	"testing"
)

func TestMonthlyRate(t *testing.T) {
	if got := MonthlyRate(16.5); math.Abs(got-0.01375) > 1e-12 {
		t.Errorf("MonthlyRate(16.5) = %v, expected 0.01375", got)
	}
	if got := MonthlyRate(0); got != 0 {
		t.Errorf("MonthlyRate(0) = %v, expected 0", got)
	}
}

func TestPayment(t *testing.T) {
	tests := []struct {
		name          string
		principal     float64
		monthlyRate   float64
		termMonths    int
		expectedRange []float64 // [min, max] expected range
	}{
		{
			name:          "Standard 30-year mortgage",
			principal:     240000,
			monthlyRate:   0.005,
			termMonths:    360,
			expectedRange: []float64{1438, 1440}, // Around 1438.92
		},
		{
			name:          "Twelve months at the default time-value rate",
			principal:     447_300_000,
			monthlyRate:   MonthlyRate(16.5),
			termMonths:    12,
			expectedRange: []float64{40_600_000, 40_800_000}, // Around 40.69M
		},
		{
			name:          "Zero interest loan",
			principal:     12000,
			monthlyRate:   0,
			termMonths:    60,
			expectedRange: []float64{199.99, 200.01},
		},
		{
			name:          "Zero principal",
			principal:     0,
			monthlyRate:   0.01,
			termMonths:    6,
			expectedRange: []float64{0, 0},
		},
		{
			name:          "Non-positive term",
			principal:     1000,
			monthlyRate:   0.01,
			termMonths:    0,
			expectedRange: []float64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Payment(tt.principal, tt.monthlyRate, tt.termMonths)

			if result < tt.expectedRange[0] || result > tt.expectedRange[1] {
				t.Errorf("Payment() = %.2f, expected range [%.2f, %.2f]",
					result, tt.expectedRange[0], tt.expectedRange[1])
			}
		})
	}
}

func TestPaymentRepaysPrincipal(t *testing.T) {
	principal := 100_000_000.0
	for _, n := range []int{1, 6, 12, 36} {
		for _, r := range []float64{0.005, MonthlyRate(16.5)} {
			payment := Payment(principal, r, n)
			repaid := payment * (1 - math.Pow(1+r, -float64(n))) / r
			if math.Abs(repaid-principal) > 1e-3 {
				t.Errorf("discounted payments = %.6f, expected %.6f (r=%v n=%d)", repaid, principal, r, n)
			}
		}
		if got := Payment(principal, 0, n) * float64(n); math.Abs(got-principal) > 1e-6 {
			t.Errorf("zero-rate payments over %d months = %.6f, expected %.6f", n, got, principal)
		}
	}
}

func TestTotalPaidExceedsPrincipalWithInterest(t *testing.T) {
	principal := 50_000_000.0
	total := TotalPaid(principal, MonthlyRate(16.5), 12)
	if total <= principal {
		t.Errorf("TotalPaid() = %.2f, expected more than principal %.2f", total, principal)
	}
	if got := TotalPaid(principal, 0, 12); math.Abs(got-principal) > 1e-6 {
		t.Errorf("TotalPaid() with zero rate = %.2f, expected %.2f", got, principal)
	}
}
