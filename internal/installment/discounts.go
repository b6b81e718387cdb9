package installment

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/ghsales/discount-engine/pkg/format"
	"github.com/ghsales/discount-engine/pkg/mathutil"
)

// baseRates are always granted by the installment products.
var baseRates = []domain.RateName{domain.RateMPP, domain.RateROP, domain.RateAction}

// stackRates sums the base rates of row with the additional discounts a
// manager grants. Each additional discount is capped by the row's value for
// that rate.
func stackRates(op string, row domain.RateRow, additional map[domain.RateName]float64) (float64, error) {
	total := row.Rates.Sum(baseRates...)

	names := make([]domain.RateName, 0, len(additional))
	for name := range additional {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		value := additional[name]
		if !slices.Contains(domain.TagRateNames, name) {
			return 0, domain.Errorf(domain.EINVALID, op, "%s cannot be granted as an additional discount", name)
		}
		if value < 0 {
			return 0, domain.Errorf(domain.EINVALID, op, "discount %s cannot be negative", name)
		}
		if limit := row.Rates.Get(name); value > limit && !mathutil.SameRate(value, limit) {
			return 0, domain.Errorf(domain.EINVALID, op, "discount %s exceeds the maximum (%s)", name, format.Rate(limit))
		}
		total += value
	}
	return total, nil
}

// ParseDiscounts validates the rate names of a request and converts its
// values from percent into fractions, so 1 is 1%.
func ParseDiscounts(in map[string]float64) (map[domain.RateName]float64, error) {
	out := make(map[domain.RateName]float64, len(in))
	for k, v := range in {
		name, err := domain.ParseRateName(k)
		if err != nil {
			return nil, err
		}
		if v < 0 || v > constants.PercentageMultiplier {
			return nil, fmt.Errorf("discount %s must be a percent within [0,100], got %v", name, v)
		}
		out[name] = v / constants.PercentageMultiplier
	}
	return out, nil
}

func requireTerm(op string, term int) error {
	if term <= 0 {
		return domain.Invalid(op, "installment term must be greater than zero")
	}
	return nil
}

func requireBase(op string, listPrice, deduction float64) (float64, error) {
	base := listPrice - deduction
	if base <= 0 {
		return 0, domain.Errorf(domain.EINVALID, op, "list price %s does not exceed the deduction of %s",
			format.Local(listPrice), format.Local(deduction))
	}
	return base, nil
}

func notWhitelisted(op string, unitID int64, product string) error {
	return domain.Errorf(domain.EINVALID, op, "%s is not available for unit %d", product, unitID)
}

func theoreticalPercent(contract, priceForCalc float64) float64 {
	return mathutil.DiscountPercent(contract, priceForCalc)
}
