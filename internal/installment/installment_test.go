package installment

import (
	"math"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/format"
)

const tolerance = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Abs(b))
}

var (
	today  = civil.Date{Year: 2026, Month: 1, Day: 15}
	cutoff = civil.Date{Year: 2027, Month: 3, Day: 1}
)

func testSettings() domain.CalculatorSettings {
	s := domain.DefaultCalculatorSettings()
	s.StandardWhitelist = []int64{42}
	s.DownPaymentWhitelist = []int64{42}
	return s
}

func fullPaymentRow(rates domain.Rates) domain.RateRow {
	c := cutoff
	return domain.RateRow{
		Key:    domain.RateKey{Project: "Sky", Category: domain.CategoryFlat, Method: domain.MethodFullPayment},
		Rates:  rates,
		Cutoff: &c,
	}
}

func mortgageRow(rates domain.Rates) domain.RateRow {
	return domain.RateRow{
		Key:   domain.RateKey{Project: "Sky", Category: domain.CategoryFlat, Method: domain.MethodMortgage},
		Rates: rates,
	}
}

func standardInput() StandardInput {
	return StandardInput{
		UnitID:     42,
		ListPrice:  500_000_000,
		Row:        fullPaymentRow(domain.Rates{MPP: 0.05, ROP: 0.03, Action: 0.02}),
		TermMonths: 12,
		Today:      today,
		StartDate:  today,
	}
}

func TestCalculateStandardEndToEnd(t *testing.T) {
	plan, err := CalculateStandard(testSettings(), domain.DefaultPricingParams(), standardInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.PriceForCalc != 497_000_000 {
		t.Errorf("PriceForCalc = %v, expected 497,000,000", plan.PriceForCalc)
	}
	if !near(plan.TotalRate, 0.10) {
		t.Errorf("TotalRate = %v, expected 0.10", plan.TotalRate)
	}
	if !near(plan.PriceAfterDiscounts, 447_300_000) {
		t.Errorf("PriceAfterDiscounts = %v, expected 447,300,000", plan.PriceAfterDiscounts)
	}
	if plan.FlooredDiscount > plan.TheoreticalDiscount {
		t.Errorf("floored discount %v exceeds theoretical %v", plan.FlooredDiscount, plan.TheoreticalDiscount)
	}
	if plan.FlooredDiscount != math.Floor(plan.FlooredDiscount) {
		t.Errorf("floored discount %v is not a whole percent", plan.FlooredDiscount)
	}
	if plan.TheoreticalDiscount < 1 || plan.TheoreticalDiscount > 2.5 {
		t.Errorf("TheoreticalDiscount = %v, expected within [1, 2.5]", plan.TheoreticalDiscount)
	}
	expectedContract := plan.PriceForCalc * (1 - plan.FlooredDiscount/100)
	if !near(plan.FinalContractValue, expectedContract) {
		t.Errorf("FinalContractValue = %v, expected %v", plan.FinalContractValue, expectedContract)
	}
	if plan.MonthsToCutoff != 13 {
		t.Errorf("MonthsToCutoff = %d, expected 13", plan.MonthsToCutoff)
	}

	if len(plan.Schedule) != 13 {
		t.Fatalf("schedule has %d entries, expected 13", len(plan.Schedule))
	}
	if plan.Schedule[0].Kind != EntryUpfront || plan.Schedule[0].Date != today {
		t.Errorf("first entry = %+v, expected the initial entry on the start date", plan.Schedule[0])
	}
	for i := 1; i < len(plan.Schedule); i++ {
		e := plan.Schedule[i]
		if e.Number != i+1 {
			t.Errorf("entry %d numbered %d", i, e.Number)
		}
		if e.Kind != EntryMonthly {
			t.Errorf("entry %d kind = %s, expected monthly", i, e.Kind)
		}
		expectedDate := civil.Date{Year: 2026 + i/12, Month: time.Month(1 + i%12), Day: 15}
		if e.Date != expectedDate {
			t.Errorf("entry %d date = %v, expected %v", i, e.Date, expectedDate)
		}
		if !e.Date.After(plan.Schedule[i-1].Date) {
			t.Errorf("entry %d date %v is not after %v", i, e.Date, plan.Schedule[i-1].Date)
		}
	}

	monthlyTotal := Total(plan.Schedule[1:])
	if !near(monthlyTotal, plan.FinalMonthlyPayment*12) {
		t.Errorf("monthly total = %v, expected %v", monthlyTotal, plan.FinalMonthlyPayment*12)
	}
	if !near(Total(plan.Schedule), plan.FinalContractValue) {
		t.Errorf("schedule total = %v, expected %v", Total(plan.Schedule), plan.FinalContractValue)
	}
}

func TestCalculateStandardWithUpfront(t *testing.T) {
	in := standardInput()
	in.Upfront = 100_000_000

	plan, err := CalculateStandard(testSettings(), domain.DefaultPricingParams(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Schedule[0].Amount != 100_000_000 {
		t.Errorf("upfront entry = %v, expected 100,000,000", plan.Schedule[0].Amount)
	}
	if !near(plan.FinalMonthlyPayment, (plan.FinalContractValue-in.Upfront)/12) {
		t.Errorf("FinalMonthlyPayment = %v, expected %v", plan.FinalMonthlyPayment, (plan.FinalContractValue-in.Upfront)/12)
	}
	if !near(Total(plan.Schedule), plan.FinalContractValue) {
		t.Errorf("schedule total = %v, expected %v", Total(plan.Schedule), plan.FinalContractValue)
	}

	without, err := CalculateStandard(testSettings(), domain.DefaultPricingParams(), standardInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.TheoreticalDiscount <= without.TheoreticalDiscount {
		t.Errorf("upfront should raise the discount: %v <= %v", plan.TheoreticalDiscount, without.TheoreticalDiscount)
	}
}

func TestCalculateStandardAdditionalDiscounts(t *testing.T) {
	in := standardInput()
	in.Row.Rates.KD = 0.03

	in.AdditionalDiscounts = map[domain.RateName]float64{domain.RateKD: 0.03}
	plan, err := CalculateStandard(testSettings(), domain.DefaultPricingParams(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(plan.TotalRate, 0.13) {
		t.Errorf("TotalRate = %v, expected 0.13", plan.TotalRate)
	}

	in.AdditionalDiscounts = map[domain.RateName]float64{domain.RateKD: 0.04}
	if _, err := CalculateStandard(testSettings(), domain.DefaultPricingParams(), in); !domain.IsCode(err, domain.EINVALID) {
		t.Errorf("expected EINVALID for a discount above the row value, got %v", err)
	}

	in.AdditionalDiscounts = map[domain.RateName]float64{domain.RateMPP: 0.01}
	if _, err := CalculateStandard(testSettings(), domain.DefaultPricingParams(), in); !domain.IsCode(err, domain.EINVALID) {
		t.Errorf("expected EINVALID for a base rate granted again, got %v", err)
	}
}

func TestCalculateStandardUpfrontBelowMinimum(t *testing.T) {
	in := standardInput()
	in.Upfront = 50_000_000

	_, err := CalculateStandard(testSettings(), domain.DefaultPricingParams(), in)
	if !domain.IsCode(err, domain.EINVALID) {
		t.Fatalf("expected EINVALID, got %v", err)
	}
	minimum := format.Local(497_000_000 * 0.15)
	if !strings.Contains(domain.ErrorMessage(err), minimum) {
		t.Errorf("message %q does not name the minimum %s", domain.ErrorMessage(err), minimum)
	}
}

func TestCalculateStandardRejections(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(s *domain.CalculatorSettings, in *StandardInput)
		message string
	}{
		{
			name:    "Unit not whitelisted",
			modify:  func(s *domain.CalculatorSettings, in *StandardInput) { in.UnitID = 7 },
			message: "not available for unit 7",
		},
		{
			name:    "Zero term",
			modify:  func(s *domain.CalculatorSettings, in *StandardInput) { in.TermMonths = 0 },
			message: "greater than zero",
		},
		{
			name:    "Term beyond cutoff",
			modify:  func(s *domain.CalculatorSettings, in *StandardInput) { in.TermMonths = 14 },
			message: "cannot exceed 13 months",
		},
		{
			name:    "Cutoff not set",
			modify:  func(s *domain.CalculatorSettings, in *StandardInput) { in.Row.Cutoff = nil },
			message: "cutoff date is not set",
		},
		{
			name:    "Price below deduction",
			modify:  func(s *domain.CalculatorSettings, in *StandardInput) { in.ListPrice = 2_000_000 },
			message: "does not exceed the deduction",
		},
		{
			name:    "Upfront covers the price",
			modify:  func(s *domain.CalculatorSettings, in *StandardInput) { in.Upfront = 450_000_000 },
			message: "leaves nothing to pay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			in := standardInput()
			tt.modify(&settings, &in)

			_, err := CalculateStandard(settings, domain.DefaultPricingParams(), in)
			if !domain.IsCode(err, domain.EINVALID) {
				t.Fatalf("expected EINVALID, got %v", err)
			}
			if !strings.Contains(domain.ErrorMessage(err), tt.message) {
				t.Errorf("message %q does not contain %q", domain.ErrorMessage(err), tt.message)
			}
		})
	}
}

func downPaymentInput() DownPaymentInput {
	return DownPaymentInput{
		UnitID:      42,
		ListPrice:   500_000_000,
		Row:         mortgageRow(domain.Rates{MPP: 0.05, ROP: 0.05}),
		TermMonths:  6,
		DownPayment: 20,
		Unit:        AmountPercent,
		USDRate:     12500,
		StartDate:   today,
	}
}

func TestCalculateDownPayment(t *testing.T) {
	plan, err := CalculateDownPayment(testSettings(), domain.DefaultPricingParams(), downPaymentInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !near(plan.PriceAfterDiscounts, 447_300_000) {
		t.Errorf("PriceAfterDiscounts = %v, expected 447,300,000", plan.PriceAfterDiscounts)
	}
	if !near(plan.DownPayment, 89_460_000) {
		t.Errorf("DownPayment = %v, expected 89,460,000", plan.DownPayment)
	}
	if !near(plan.MortgageBody, 357_840_000) {
		t.Errorf("MortgageBody = %v, expected 357,840,000", plan.MortgageBody)
	}
	if plan.FlooredDiscount > plan.TheoreticalDiscount {
		t.Errorf("floored discount %v exceeds theoretical %v", plan.FlooredDiscount, plan.TheoreticalDiscount)
	}
	if !near(plan.FinalDownPaymentTotal, plan.FinalContractValue-plan.MortgageBody) {
		t.Errorf("FinalDownPaymentTotal = %v, expected contract less body", plan.FinalDownPaymentTotal)
	}

	if len(plan.Schedule) != 7 {
		t.Fatalf("schedule has %d entries, expected 7", len(plan.Schedule))
	}
	for i, e := range plan.Schedule[:6] {
		if e.Kind != EntryMonthly || !near(e.Amount, plan.FinalMonthlyDownPayment) {
			t.Errorf("entry %d = %+v, expected a monthly down payment", i, e)
		}
	}
	last := plan.Schedule[6]
	if last.Kind != EntryMortgageBody || !near(last.Amount, plan.MortgageBody) {
		t.Errorf("last entry = %+v, expected the mortgage body", last)
	}
	if last.Date != (civil.Date{Year: 2026, Month: 8, Day: 15}) {
		t.Errorf("mortgage body date = %v, expected 2026-08-15", last.Date)
	}
	if !near(Total(plan.Schedule), plan.FinalContractValue) {
		t.Errorf("schedule total = %v, expected %v", Total(plan.Schedule), plan.FinalContractValue)
	}
}

func TestCalculateDownPaymentUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		unit     AmountUnit
		expected float64
	}{
		{"Percent of discounted price", 20, AmountPercent, 89_460_000},
		{"Local amount", 90_000_000, AmountLocal, 90_000_000},
		{"USD amount", 8_000, AmountUSD, 100_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := downPaymentInput()
			in.DownPayment = tt.amount
			in.Unit = tt.unit

			plan, err := CalculateDownPayment(testSettings(), domain.DefaultPricingParams(), in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !near(plan.DownPayment, tt.expected) {
				t.Errorf("DownPayment = %v, expected %v", plan.DownPayment, tt.expected)
			}
		})
	}
}

func TestCalculateDownPaymentBelowMinimum(t *testing.T) {
	in := downPaymentInput()
	in.DownPayment = 10

	_, err := CalculateDownPayment(testSettings(), domain.DefaultPricingParams(), in)
	if !domain.IsCode(err, domain.EINVALID) {
		t.Fatalf("expected EINVALID, got %v", err)
	}
	minimum := format.Local(447_300_000 * 0.15)
	if !strings.Contains(domain.ErrorMessage(err), minimum) {
		t.Errorf("message %q does not name the minimum %s", domain.ErrorMessage(err), minimum)
	}
}

func TestCalculateDownPaymentCapacity(t *testing.T) {
	// 600M list: price after discounts 537.3M, so 15% leaves a 456.705M body.
	tests := []struct {
		name      string
		amount    float64
		unit      AmountUnit
		shortfall string
	}{
		{"Percent", 15, AmountPercent, format.Percent(36_705_000 / 537_300_000.0 * 100)},
		{"Local", 80_595_000, AmountLocal, format.Local(36_705_000)},
		{"USD", 7_000, AmountUSD, format.USD((537_300_000 - 87_500_000 - 420_000_000) / 12500.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := downPaymentInput()
			in.ListPrice = 600_000_000
			in.DownPayment = tt.amount
			in.Unit = tt.unit

			_, err := CalculateDownPayment(testSettings(), domain.DefaultPricingParams(), in)
			if !domain.IsCode(err, domain.ECAPACITY) {
				t.Fatalf("expected ECAPACITY, got %v", err)
			}
			if !strings.Contains(domain.ErrorMessage(err), tt.shortfall) {
				t.Errorf("message %q does not name the shortfall %s", domain.ErrorMessage(err), tt.shortfall)
			}
		})
	}
}

func TestCalculateDownPaymentRejections(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *DownPaymentInput)
	}{
		{"Unit not whitelisted", func(in *DownPaymentInput) { in.UnitID = 7 }},
		{"Zero term", func(in *DownPaymentInput) { in.TermMonths = 0 }},
		{"Term above maximum", func(in *DownPaymentInput) { in.TermMonths = 7 }},
		{"Down payment covers the price", func(in *DownPaymentInput) { in.DownPayment = 100 }},
		{"Missing USD rate", func(in *DownPaymentInput) { in.Unit = AmountUSD; in.USDRate = 0 }},
		{"Non-positive down payment", func(in *DownPaymentInput) { in.DownPayment = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := downPaymentInput()
			tt.modify(&in)
			if _, err := CalculateDownPayment(testSettings(), domain.DefaultPricingParams(), in); !domain.IsCode(err, domain.EINVALID) {
				t.Errorf("expected EINVALID, got %v", err)
			}
		})
	}
}

func TestDiscountFlooringNeverRaisesTheDiscount(t *testing.T) {
	params := domain.DefaultPricingParams()

	standard := []struct {
		name      string
		listPrice float64
		rates     domain.Rates
		term      int
		upfront   float64
		timeValue float64
	}{
		{"Default plan", 500_000_000, domain.Rates{MPP: 0.05, ROP: 0.03, Action: 0.02}, 12, 0, 16.5},
		{"Short term with upfront", 500_000_000, domain.Rates{MPP: 0.05, ROP: 0.03, Action: 0.02}, 3, 100_000_000, 16.5},
		{"Single month", 203_000_000, domain.Rates{MPP: 0.1}, 1, 0, 16.5},
		{"No discounts to the cutoff", 903_000_000, domain.Rates{}, 13, 200_000_000, 24},
		{"Zero time value", 350_000_000, domain.Rates{MPP: 0.05, ROP: 0.03}, 6, 0, 0},
	}
	for _, tt := range standard {
		t.Run("Standard "+tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.TimeValueRateAnnual = tt.timeValue
			in := standardInput()
			in.ListPrice = tt.listPrice
			in.Row = fullPaymentRow(tt.rates)
			in.TermMonths = tt.term
			in.Upfront = tt.upfront

			plan, err := CalculateStandard(settings, params, in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if plan.FlooredDiscount != math.Floor(plan.TheoreticalDiscount) {
				t.Errorf("FlooredDiscount = %v, expected floor of %v", plan.FlooredDiscount, plan.TheoreticalDiscount)
			}
			if plan.FinalContractValue < plan.TheoreticalContractValue-tolerance {
				t.Errorf("FinalContractValue %v is below the theoretical %v", plan.FinalContractValue, plan.TheoreticalContractValue)
			}
		})
	}

	downPayment := []struct {
		name      string
		listPrice float64
		rates     domain.Rates
		term      int
		amount    float64
		unit      AmountUnit
		timeValue float64
	}{
		{"Default plan", 500_000_000, domain.Rates{MPP: 0.05, ROP: 0.05}, 6, 20, AmountPercent, 16.5},
		{"Half down in one month", 500_000_000, domain.Rates{MPP: 0.05, ROP: 0.05}, 1, 50, AmountPercent, 16.5},
		{"Exact minimum", 303_000_000, domain.Rates{}, 3, 15, AmountPercent, 16.5},
		{"Body at the cap", 903_000_000, domain.Rates{MPP: 0.1}, 6, 50, AmountPercent, 16.5},
		{"Local amount without time value", 203_000_000, domain.Rates{}, 4, 100_000_000, AmountLocal, 0},
	}
	for _, tt := range downPayment {
		t.Run("Down payment "+tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.TimeValueRateAnnual = tt.timeValue
			in := downPaymentInput()
			in.ListPrice = tt.listPrice
			in.Row = mortgageRow(tt.rates)
			in.TermMonths = tt.term
			in.DownPayment = tt.amount
			in.Unit = tt.unit

			plan, err := CalculateDownPayment(settings, params, in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if plan.FlooredDiscount != math.Floor(plan.TheoreticalDiscount) {
				t.Errorf("FlooredDiscount = %v, expected floor of %v", plan.FlooredDiscount, plan.TheoreticalDiscount)
			}
			if plan.FinalContractValue < plan.TheoreticalContractValue-tolerance {
				t.Errorf("FinalContractValue %v is below the theoretical %v", plan.FinalContractValue, plan.TheoreticalContractValue)
			}
		})
	}
}

func TestParseDiscounts(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]float64
		expected  map[domain.RateName]float64
		expectErr bool
	}{
		{"Whole percents", map[string]float64{"kd": 3, "gd": 2}, map[domain.RateName]float64{domain.RateKD: 0.03, domain.RateGD: 0.02}, false},
		{"One percent is not one hundred", map[string]float64{"kd": 1}, map[domain.RateName]float64{domain.RateKD: 0.01}, false},
		{"Fractional percent", map[string]float64{"holding": 0.5}, map[domain.RateName]float64{domain.RateHolding: 0.005}, false},
		{"Above one hundred", map[string]float64{"kd": 150}, nil, true},
		{"Negative", map[string]float64{"kd": -1}, nil, true},
		{"Unknown rate name", map[string]float64{"bogus": 1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDiscounts(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("ParseDiscounts(%v) expected an error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("ParseDiscounts = %v, expected %v", got, tt.expected)
			}
			for name, want := range tt.expected {
				if !near(got[name], want) {
					t.Errorf("%s = %v, expected %v", name, got[name], want)
				}
			}
		})
	}
}

func TestParseAmountUnit(t *testing.T) {
	tests := map[string]AmountUnit{"": AmountLocal, "UZS": AmountLocal, "percent": AmountPercent, "%": AmountPercent, "USD": AmountUSD}
	for input, expected := range tests {
		got, err := ParseAmountUnit(input)
		if err != nil || got != expected {
			t.Errorf("ParseAmountUnit(%q) = %v, %v; expected %v", input, got, err, expected)
		}
	}
	if _, err := ParseAmountUnit("eur"); err == nil {
		t.Error("expected an error for eur")
	}
}
