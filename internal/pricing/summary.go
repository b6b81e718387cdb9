package pricing

import (
	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/datetime"
)

// ProjectSummary is the discount overview of one project.
type ProjectSummary struct {
	Project string `json:"project"`
	// FullPaymentRate and MortgageRate are mpp+rop of the project's flat rows.
	FullPaymentRate float64 `json:"fullPaymentRate"`
	MortgageRate    float64 `json:"mortgageRate"`
	// MonthsToCutoff is nil unless the flat full-payment row has a future cutoff.
	MonthsToCutoff *int `json:"monthsToCutoff,omitempty"`
	// AvgPricePerSqmUSD averages the full-payment price per square metre of
	// the project's available flats.
	AvgPricePerSqmUSD float64           `json:"avgPricePerSqmUsd"`
	Tags              []domain.RateName `json:"tags"`
	MaxAction         float64           `json:"maxAction"`
}

// Summarize builds the overview of every project with rows in table. units
// should hold the available flats; usdRate converts prices for display.
func Summarize(params domain.PricingParams, today civil.Date, table domain.RateTable, units []domain.Unit, usdRate float64) []ProjectSummary {
	unitsByProject := map[string][]domain.Unit{}
	for _, u := range units {
		unitsByProject[u.Project] = append(unitsByProject[u.Project], u)
	}

	projects := sortedProjects(table)
	out := make([]ProjectSummary, 0, len(projects))
	for _, project := range projects {
		s := ProjectSummary{Project: project, Tags: []domain.RateName{}}

		full, hasFull := table[domain.RateKey{Project: project, Category: domain.CategoryFlat, Method: domain.MethodFullPayment}]
		if hasFull {
			s.FullPaymentRate = full.Rates.Sum(domain.RateMPP, domain.RateROP)
			if full.Cutoff != nil && full.Cutoff.After(today) {
				months := datetime.MonthsBetween(today, *full.Cutoff)
				s.MonthsToCutoff = &months
			}
		}
		if mortgage, ok := table[domain.RateKey{Project: project, Category: domain.CategoryFlat, Method: domain.MethodMortgage}]; ok {
			s.MortgageRate = mortgage.Rates.Sum(domain.RateMPP, domain.RateROP)
		}

		s.AvgPricePerSqmUSD = averagePricePerSqm(params, project, table, unitsByProject[project], usdRate)

		tagged := map[domain.RateName]bool{}
		for key, row := range table {
			if key.Project != project {
				continue
			}
			if row.Rates.Action > s.MaxAction {
				s.MaxAction = row.Rates.Action
			}
			for _, name := range domain.TagRateNames {
				if row.Rates.Get(name) > 0 {
					tagged[name] = true
				}
			}
		}
		for _, name := range domain.TagRateNames {
			if tagged[name] {
				s.Tags = append(s.Tags, name)
			}
		}

		out = append(out, s)
	}
	return out
}

func averagePricePerSqm(params domain.PricingParams, project string, table domain.RateTable, units []domain.Unit, usdRate float64) float64 {
	if usdRate <= 0 {
		return 0
	}
	row := table.Lookup(domain.RateKey{Project: project, Category: domain.CategoryFlat, Method: domain.MethodFullPayment})

	total, count := 0.0, 0
	for _, u := range units {
		if u.Category != domain.CategoryFlat || u.Area <= 0 || !params.Available(u.Status) {
			continue
		}
		opt, err := ComputeOption(params, u.Price, domain.MethodFullPayment, row)
		if err != nil {
			continue
		}
		total += opt.FinalPrice / u.Area
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count) / usdRate
}
