package format

import "testing"

func TestLocal(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0 UZS"},
		{999, "999 UZS"},
		{74_550_000, "74,550,000 UZS"},
		{1234.99, "1,235 UZS"},
	}

	for _, tt := range tests {
		if got := Local(tt.input); got != tt.expected {
			t.Errorf("Local(%v) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestUSD(t *testing.T) {
	if got := USD(12345.4); got != "$12,345" {
		t.Errorf("USD() = %q, expected $12,345", got)
	}
	if got := USD(-50); got != "-$50" {
		t.Errorf("USD() = %q, expected -$50", got)
	}
}

func TestRate(t *testing.T) {
	if got := Rate(0.125); got != "12.50%" {
		t.Errorf("Rate() = %q, expected 12.50%%", got)
	}
	if got := Percent(3.456); got != "3.46%" {
		t.Errorf("Percent() = %q, expected 3.46%%", got)
	}
}
