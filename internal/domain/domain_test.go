package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), EINTERNAL},
		{"invalid", Invalid("op", "bad"), EINVALID},
		{"capacity", Capacity("op", "too much"), ECAPACITY},
		{"state", State("op", "nope"), ESTATE},
		{"not found", NotFound("op", "unit", "7"), ENOTFOUND},
		{"wrapped", fmt.Errorf("outer: %w", Invalid("op", "bad")), EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessageHidesInternalDetails(t *testing.T) {
	err := Internal(errors.New("connection reset"), "postgres.Get", "query failed")
	assert.NotContains(t, ErrorMessage(err), "connection reset")
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, "unit not found: 42", ErrorMessage(NotFound("op", "unit", "42")))
	assert.True(t, IsCode(ErrNoActiveVersion, ESTATE))
}

func TestParseCategory(t *testing.T) {
	for _, c := range AllCategories {
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)

		parsed, err = ParseCategory(c.Label())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	parsed, err := ParseCategory("comm")
	require.NoError(t, err)
	assert.Equal(t, CategoryCommercial, parsed)

	_, err = ParseCategory("villa")
	assert.Error(t, err)
}

func TestParsePaymentMethod(t *testing.T) {
	for _, m := range AllPaymentMethods {
		parsed, err := ParsePaymentMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParsePaymentMethod("barter")
	assert.Error(t, err)

	assert.Equal(t, MethodFullPayment, MethodTrancheFull.Base())
	assert.Equal(t, MethodMortgage, MethodTrancheMortgage.Base())
	assert.True(t, MethodTrancheMortgage.Financed())
	assert.False(t, MethodFullPayment.Tranche())
}

func TestEnumJSON(t *testing.T) {
	key := RateKey{Project: "Sky", Category: CategoryGarage, Method: MethodMortgage}
	data, err := json.Marshal(key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"project":"Sky","category":"garage","method":"mortgage"}`, string(data))

	var decoded RateKey
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, key, decoded)

	_, err = json.Marshal(RateKey{Project: "Sky"})
	assert.Error(t, err, "zero enum values must not serialize")
}

func TestRatesGetSet(t *testing.T) {
	var r Rates
	for i, n := range AllRateNames {
		require.NoError(t, r.Set(n, float64(i+1)/100))
	}
	for i, n := range AllRateNames {
		assert.InDelta(t, float64(i+1)/100, r.Get(n), 1e-12)
	}
	assert.Error(t, r.Set("bonus", 0.1))
	assert.InDelta(t, 0.03, r.Sum(RateMPP, RateROP), 1e-12)
}

func TestRatesValidate(t *testing.T) {
	assert.NoError(t, Rates{MPP: 0.1, Action: 1}.Validate())
	assert.Error(t, Rates{KD: 1.2}.Validate())
	assert.Error(t, Rates{GD: -0.01}.Validate())
}

func TestRateRowCloneDoesNotAlias(t *testing.T) {
	cutoff := civil.Date{Year: 2027, Month: 3, Day: 1}
	row := RateRow{Key: RateKey{Project: "Sky", Category: CategoryFlat, Method: MethodFullPayment}, Cutoff: &cutoff}

	clone := row.Clone()
	clone.Cutoff.Day = 15
	clone.Rates.MPP = 0.5

	assert.Equal(t, 1, row.Cutoff.Day)
	assert.Zero(t, row.Rates.MPP)
}

func TestRateTableLookup(t *testing.T) {
	full := RateRow{
		Key:   RateKey{Project: "Sky", Category: CategoryFlat, Method: MethodFullPayment},
		Rates: Rates{MPP: 0.05, ROP: 0.02, KD: 0.03},
	}
	table := NewRateTable([]RateRow{full})

	got := table.Lookup(full.Key)
	assert.Equal(t, full.Rates, got.Rates)

	tranche := table.Lookup(RateKey{Project: "Sky", Category: CategoryFlat, Method: MethodTrancheFull})
	assert.Equal(t, MethodTrancheFull, tranche.Key.Method)
	assert.Zero(t, tranche.Rates.KD)
	assert.InDelta(t, 0.07, tranche.Rates.Sum(RateMPP, RateROP, RateKD), 1e-12)

	missing := table.Lookup(RateKey{Project: "Sky", Category: CategoryFlat, Method: MethodMortgage})
	assert.Equal(t, Rates{}, missing.Rates)
	assert.False(t, table.Has(missing.Key))
	assert.True(t, table.Has(tranche.Key))
}

func TestVersionStatus(t *testing.T) {
	assert.Equal(t, StatusDraft, Version{}.Status())
	assert.Equal(t, StatusActive, Version{Active: true, EverActivated: true}.Status())
	assert.Equal(t, StatusArchived, Version{EverActivated: true}.Status())
	assert.True(t, Version{}.Editable())
	assert.False(t, Version{EverActivated: true}.Editable())
}

func TestCalculatorSettings(t *testing.T) {
	s := DefaultCalculatorSettings()
	require.NoError(t, s.Validate())
	assert.False(t, s.StandardAllowed(1))

	s.StandardWhitelist = []int64{1, 2}
	clone := s.Clone()
	clone.StandardWhitelist[0] = 99
	assert.True(t, s.StandardAllowed(1))

	s.DownPaymentMaxTerm = 0
	assert.Error(t, s.Validate())
}

func TestCalculatorSettingsValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*CalculatorSettings)
		contains string
	}{
		{"Defaults", func(*CalculatorSettings) {}, ""},
		{"Zero max term", func(s *CalculatorSettings) { s.DownPaymentMaxTerm = 0 }, "DownPaymentMaxTerm"},
		{"Max term above ten years", func(s *CalculatorSettings) { s.DownPaymentMaxTerm = 121 }, "lte=120"},
		{"Time value above 100 percent", func(s *CalculatorSettings) { s.TimeValueRateAnnual = 150 }, "TimeValueRateAnnual"},
		{"Negative minimum upfront", func(s *CalculatorSettings) { s.StandardMinDownPaymentPercent = -1 }, "StandardMinDownPaymentPercent"},
		{"Non-positive unit id", func(s *CalculatorSettings) { s.StandardWhitelist = []int64{5, 0} }, "StandardWhitelist[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultCalculatorSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.contains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestVersionDiffProjects(t *testing.T) {
	d := VersionDiff{
		Added:       []RateRow{{Key: RateKey{Project: "B"}}},
		Modified:    []RowChange{{Key: RateKey{Project: "A"}}, {Key: RateKey{Project: "B"}}},
		Annotations: []AnnotationChange{{Project: "C"}},
	}
	assert.Equal(t, []string{"B", "A", "C"}, d.Projects())
	assert.False(t, d.Empty())
	assert.True(t, VersionDiff{}.Empty())
}
