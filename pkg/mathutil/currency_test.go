package mathutil

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Round up at midpoint", 1.235, 1.24},
		{"Round down below midpoint", 1.234, 1.23},
		{"No rounding needed", 1.23, 1.23},
		{"Large number", 497000000.678, 497000000.68},
		{"Negative number round down", -1.234, -1.23},
		{"Zero", 0.0, 0.0},
		{"Very small positive", 0.001, 0.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(tt.input)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("Round(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSameRate(t *testing.T) {
	if !SameRate(0.05, 0.05+1e-12) {
		t.Error("expected rates within epsilon to be equal")
	}
	if SameRate(0.05, 0.0501) {
		t.Error("expected distinct rates to differ")
	}
}

func TestFloorPercent(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{7.999, 7},
		{7.0, 7},
		{0.4, 0},
		{-0.4, -1},
		{12.5, 12},
	}

	for _, tt := range tests {
		if got := FloorPercent(tt.input); got != tt.expected {
			t.Errorf("FloorPercent(%v) = %v, expected %v", tt.input, got, tt.expected)
		}
		if FloorPercent(tt.input) > tt.input {
			t.Errorf("FloorPercent(%v) rounded up", tt.input)
		}
	}
}

func TestDiscountPercentRoundTrip(t *testing.T) {
	base := 497_000_000.0
	value := ApplyDiscountPercent(base, 8)
	if math.Abs(value-457_240_000) > 0.001 {
		t.Fatalf("ApplyDiscountPercent() = %.2f, expected 457240000", value)
	}
	if got := DiscountPercent(value, base); math.Abs(got-8) > 1e-9 {
		t.Errorf("DiscountPercent() = %v, expected 8", got)
	}
	if got := DiscountPercent(100, 0); got != 0 {
		t.Errorf("DiscountPercent() with zero base = %v, expected 0", got)
	}
}

func TestNormalizeRate(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{0.05, 0.05},
		{5, 0.05},
		{1, 1},
		{0, 0},
	}

	for _, tt := range tests {
		if got := NormalizeRate(tt.input); math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("NormalizeRate(%v) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}
