package pricing

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/domain"
)

func budgetFixture() *Service {
	table := domain.NewRateTable([]domain.RateRow{
		flatRow(domain.MethodFullPayment, domain.Rates{MPP: 0.1, KD: 0.05}),
		flatRow(domain.MethodMortgage, domain.Rates{MPP: 0.05}),
	})
	return newTestService(table,
		domain.Unit{ID: 1, Project: "Sky", Category: domain.CategoryFlat, Rooms: 2, Price: 203_000_000, Area: 50, Status: "Подбор"},
		domain.Unit{ID: 2, Project: "Sky", Category: domain.CategoryFlat, Rooms: 0, Price: 103_000_000, Area: 25, Status: "Маркетинговый резерв"},
		domain.Unit{ID: 3, Project: "Sky", Category: domain.CategoryFlat, Rooms: 3, Price: 903_000_000, Area: 120, Status: "Подбор"},
		domain.Unit{ID: 4, Project: "Sky", Category: domain.CategoryFlat, Rooms: 1, Price: 53_000_000, Area: 20, Status: "Продано"},
		domain.Unit{ID: 5, Project: "Park", Category: domain.CategoryFlat, Rooms: 1, Price: 2_000_000, Area: 20, Status: "Подбор"},
		domain.Unit{ID: 6, Project: "Park", Category: domain.CategoryGarage, Price: 13_000_000, Status: "Подбор"},
	)
}

func TestFindByBudget(t *testing.T) {
	s := budgetFixture()

	// 100M full payment: unit 2 at 100M*0.85 = 85M. Mortgage down payments:
	// unit 1 190M*0.15 = 28.5M, unit 2 95M*0.15 = 14.25M, unit 3 855M-420M = 435M.
	res, err := s.FindByBudget(context.Background(), BudgetQuery{Budget: 100_000_000, Category: domain.CategoryFlat})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Projects) != 1 || res.Projects[0].Project != "Sky" {
		t.Fatalf("expected only Sky to match, got %+v", res.Projects)
	}

	byMethod := map[domain.PaymentMethod][]int64{}
	for _, m := range res.Projects[0].Methods {
		for _, g := range m.Rooms {
			for _, u := range g.Units {
				byMethod[m.Method] = append(byMethod[m.Method], u.UnitID)
			}
		}
	}

	expected := map[domain.PaymentMethod][]int64{
		domain.MethodFullPayment:     {2},
		domain.MethodMortgage:        {2, 1},
		domain.MethodTrancheFull:     {2},
		domain.MethodTrancheMortgage: {2, 1},
	}
	for method, ids := range expected {
		got := byMethod[method]
		if len(got) != len(ids) {
			t.Errorf("%s: matched %v, expected %v", method, got, ids)
			continue
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Errorf("%s: matched %v, expected %v", method, got, ids)
				break
			}
		}
	}
	if res.Total != 6 {
		t.Errorf("Total = %d, expected 6", res.Total)
	}

	// Studios sort before room counts.
	mortgage := res.Projects[0].Methods[1]
	if mortgage.Method != domain.MethodMortgage || mortgage.Rooms[0].Rooms != "studio" {
		t.Errorf("unexpected grouping %+v", mortgage)
	}
}

func TestFindByBudgetUSD(t *testing.T) {
	s := budgetFixture()

	// 8,000 USD * 12,500 = 100M.
	res, err := s.FindByBudget(context.Background(), BudgetQuery{
		Budget:   8_000,
		Currency: "USD",
		Category: domain.CategoryFlat,
		Methods:  []domain.PaymentMethod{domain.MethodFullPayment},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BudgetLocal != 100_000_000 {
		t.Errorf("BudgetLocal = %v, expected 100,000,000", res.BudgetLocal)
	}
	if res.Total != 1 {
		t.Errorf("Total = %d, expected 1", res.Total)
	}
}

func TestFindByBudgetValidation(t *testing.T) {
	s := budgetFixture()
	tests := []struct {
		name  string
		query BudgetQuery
	}{
		{"zero budget", BudgetQuery{Category: domain.CategoryFlat}},
		{"missing category", BudgetQuery{Budget: 1}},
		{"unknown currency", BudgetQuery{Budget: 1, Currency: "EUR", Category: domain.CategoryFlat}},
		{"tranche for garages", BudgetQuery{Budget: 1, Category: domain.CategoryGarage, Methods: []domain.PaymentMethod{domain.MethodTrancheFull}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.FindByBudget(context.Background(), tt.query)
			if domain.ErrorCode(err) != domain.EINVALID {
				t.Errorf("expected %s, got %v", domain.EINVALID, err)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	cutoff := civil.Date{Year: 2026, Month: 7, Day: 20}
	full := flatRow(domain.MethodFullPayment, domain.Rates{MPP: 0.1, ROP: 0.02, KD: 0.03, Action: 0.05})
	full.Cutoff = &cutoff
	table := domain.NewRateTable([]domain.RateRow{
		full,
		flatRow(domain.MethodMortgage, domain.Rates{MPP: 0.04, ROP: 0.01, Holding: 0.02}),
		{Key: domain.RateKey{Project: "Park", Category: domain.CategoryGarage, Method: domain.MethodFullPayment}, Rates: domain.Rates{Action: 0.08}},
	})
	units := []domain.Unit{
		{ID: 1, Project: "Sky", Category: domain.CategoryFlat, Price: 103_000_000, Area: 50, Status: "Подбор"},
		{ID: 2, Project: "Sky", Category: domain.CategoryFlat, Price: 203_000_000, Area: 100, Status: "Подбор"},
		{ID: 3, Project: "Sky", Category: domain.CategoryFlat, Price: 203_000_000, Area: 0, Status: "Подбор"},
	}

	got := Summarize(domain.DefaultPricingParams(), civil.Date{Year: 2026, Month: 1, Day: 15}, table, units, 12500)
	if len(got) != 2 || got[0].Project != "Park" || got[1].Project != "Sky" {
		t.Fatalf("unexpected projects %+v", got)
	}

	park := got[0]
	if park.MaxAction != 0.08 || len(park.Tags) != 0 || park.MonthsToCutoff != nil {
		t.Errorf("unexpected Park summary %+v", park)
	}

	sky := got[1]
	if !near(sky.FullPaymentRate, 0.12) || !near(sky.MortgageRate, 0.05) {
		t.Errorf("rates = %v / %v, expected 0.12 / 0.05", sky.FullPaymentRate, sky.MortgageRate)
	}
	if sky.MonthsToCutoff == nil || *sky.MonthsToCutoff != 6 {
		t.Errorf("MonthsToCutoff = %v, expected 6", sky.MonthsToCutoff)
	}
	// Both flats price at 0.85 * 2M per square metre = 1.7M, i.e. 136 USD.
	if !near(sky.AvgPricePerSqmUSD, 136) {
		t.Errorf("AvgPricePerSqmUSD = %v, expected 136", sky.AvgPricePerSqmUSD)
	}
	if len(sky.Tags) != 2 || sky.Tags[0] != domain.RateKD || sky.Tags[1] != domain.RateHolding {
		t.Errorf("Tags = %v, expected [kd holding]", sky.Tags)
	}
	if sky.MaxAction != 0.05 {
		t.Errorf("MaxAction = %v, expected 0.05", sky.MaxAction)
	}
}
