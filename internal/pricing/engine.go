// Package pricing computes final prices and required down payments for a
// unit under each payment method of the active discount version.
package pricing

import (
	"fmt"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/constants"
)

// Option is the price of a unit under one payment method.
type Option struct {
	Method       domain.PaymentMethod `json:"method"`
	ListPrice    float64              `json:"listPrice"`
	DeductedBase float64              `json:"deductedBase"`
	TotalRate    float64              `json:"totalRate"`
	FinalPrice   float64              `json:"finalPrice"`

	// Financed methods only.
	DownPayment float64 `json:"downPayment,omitempty"`
	Principal   float64 `json:"principal,omitempty"`

	// FirstInstallment is set for tranche methods: a third of the amount due
	// up front.
	FirstInstallment float64 `json:"firstInstallment,omitempty"`

	// Rates and Cutoff echo the row the option was priced from.
	Rates  domain.Rates `json:"rates"`
	Cutoff string       `json:"cutoff,omitempty"`
}

// UpFront is the amount the buyer pays before any financing: the final price
// for full-payment methods, the down payment for financed ones.
func (o Option) UpFront() float64 {
	if o.Method.Financed() {
		return o.DownPayment
	}
	return o.FinalPrice
}

// stackedRates are the rates every method sums. Tranche rows arrive with the
// cadastre-linked rate zeroed, so they effectively stack mpp and rop only.
var stackedRates = []domain.RateName{domain.RateMPP, domain.RateROP, domain.RateKD}

// MethodsFor returns the payment methods offered for a unit category. Tranche
// variants exist for flats only.
func MethodsFor(c domain.Category) []domain.PaymentMethod {
	if c == domain.CategoryFlat {
		return domain.AllPaymentMethods
	}
	return domain.StoredPaymentMethods
}

// ComputeOption prices listPrice with row under method. row must already be
// the row for method (tranche rows derived, missing rows all-zero).
func ComputeOption(params domain.PricingParams, listPrice float64, method domain.PaymentMethod, row domain.RateRow) (Option, error) {
	const op = "pricing.ComputeOption"

	base := listPrice - params.Deduction
	if base <= 0 {
		return Option{}, domain.Errorf(domain.EINVALID, op,
			"list price %.0f does not exceed the deduction of %.0f", listPrice, params.Deduction)
	}

	opt := Option{
		Method:       method,
		ListPrice:    listPrice,
		DeductedBase: base,
		Rates:        row.Rates,
	}
	if row.Cutoff != nil {
		opt.Cutoff = row.Cutoff.String()
	}
	opt.TotalRate = row.Rates.Sum(stackedRates...)
	opt.FinalPrice = base * (1 - opt.TotalRate)

	switch method {
	case domain.MethodFullPayment:
	case domain.MethodTrancheFull:
		opt.FirstInstallment = opt.FinalPrice / constants.TrancheCount
	case domain.MethodMortgage, domain.MethodTrancheMortgage:
		dp, floored := downPayment(params, opt.FinalPrice)
		if floored {
			opt.FinalPrice = dp + params.MaxMortgageBody
		}
		opt.DownPayment = dp
		opt.Principal = opt.FinalPrice - dp
		if method == domain.MethodTrancheMortgage {
			opt.FirstInstallment = dp / constants.TrancheCount
		}
	default:
		return Option{}, domain.Errorf(domain.EINVALID, op, "unsupported payment method %s", method)
	}
	return opt, nil
}

// downPayment returns the amount due up front on a financed purchase. It
// covers whatever exceeds the mortgage cap and never falls below the minimum
// fraction of the price. floored reports that the minimum raised it, in which
// case the final price becomes the down payment plus the full cap.
func downPayment(params domain.PricingParams, finalPrice float64) (dp float64, floored bool) {
	dp = finalPrice - params.MaxMortgageBody
	if dp < 0 {
		dp = 0
	}
	if floor := finalPrice * params.MinDownPaymentFraction; dp < floor {
		return floor, true
	}
	return dp, false
}

// ComputeOptions prices the unit under every method offered for its category.
func ComputeOptions(params domain.PricingParams, unit domain.Unit, table domain.RateTable) ([]Option, error) {
	methods := MethodsFor(unit.Category)
	out := make([]Option, 0, len(methods))
	for _, method := range methods {
		row := table.Lookup(domain.RateKey{Project: unit.Project, Category: unit.Category, Method: method})
		opt, err := ComputeOption(params, unit.Price, method, row)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", unit.ID, err)
		}
		out = append(out, opt)
	}
	return out, nil
}
