package installment

import (
	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/annuity"
	"github.com/ghsales/discount-engine/pkg/datetime"
	"github.com/ghsales/discount-engine/pkg/format"
	"github.com/ghsales/discount-engine/pkg/mathutil"
)

// StandardInput describes a standard installment quote.
type StandardInput struct {
	UnitID    int64
	ListPrice float64
	// Row is the unit's full-payment rate row; its cutoff bounds the term.
	Row                 domain.RateRow
	TermMonths          int
	AdditionalDiscounts map[domain.RateName]float64
	// Upfront is an optional first payment due on the start date.
	Upfront float64
	// Today anchors the months-to-cutoff bound; StartDate anchors the schedule.
	Today     civil.Date
	StartDate civil.Date
}

// StandardPlan is a priced standard installment plan.
type StandardPlan struct {
	UnitID              int64   `json:"unitId"`
	ListPrice           float64 `json:"listPrice"`
	PriceForCalc        float64 `json:"priceForCalc"`
	TotalRate           float64 `json:"totalRate"`
	PriceAfterDiscounts float64 `json:"priceAfterDiscounts"`
	Upfront             float64 `json:"upfront"`
	TermMonths          int     `json:"termMonths"`
	MonthsToCutoff      int     `json:"monthsToCutoff"`

	TheoreticalMonthlyPayment float64 `json:"theoreticalMonthlyPayment"`
	TheoreticalContractValue  float64 `json:"theoreticalContractValue"`
	TheoreticalDiscount       float64 `json:"theoreticalDiscount"`

	// FlooredDiscount is the theoretical discount rounded down to a whole
	// percent; the final figures are derived from it.
	FlooredDiscount     float64 `json:"flooredDiscount"`
	FinalContractValue  float64 `json:"finalContractValue"`
	FinalMonthlyPayment float64 `json:"finalMonthlyPayment"`

	Schedule []ScheduleEntry `json:"schedule"`
}

// CalculateStandard prices a standard installment plan: the buyer pays the
// discounted price (less any upfront payment) in equal monthly payments until
// the cutoff. Future payments are discounted at the settings' time-value rate
// and the resulting effective discount is floored to a whole percent.
func CalculateStandard(settings domain.CalculatorSettings, params domain.PricingParams, in StandardInput) (*StandardPlan, error) {
	const op = "installment.CalculateStandard"

	if !settings.StandardAllowed(in.UnitID) {
		return nil, notWhitelisted(op, in.UnitID, "standard installment")
	}
	if err := requireTerm(op, in.TermMonths); err != nil {
		return nil, err
	}

	if in.Row.Cutoff == nil {
		return nil, domain.Invalid(op, "installment cannot be calculated: the cutoff date is not set")
	}
	monthsToCutoff := datetime.MonthsBetween(in.Today, *in.Row.Cutoff)
	if in.TermMonths > monthsToCutoff {
		if monthsToCutoff < 0 {
			monthsToCutoff = 0
		}
		return nil, domain.Errorf(domain.EINVALID, op,
			"installment term cannot exceed %d months (until the cutoff date)", monthsToCutoff)
	}

	priceForCalc, err := requireBase(op, in.ListPrice, params.Deduction)
	if err != nil {
		return nil, err
	}

	totalRate, err := stackRates(op, in.Row, in.AdditionalDiscounts)
	if err != nil {
		return nil, err
	}
	priceAfter := priceForCalc * (1 - totalRate)

	if in.Upfront < 0 {
		return nil, domain.Invalid(op, "upfront payment cannot be negative")
	}
	if in.Upfront > 0 {
		minimum := priceForCalc * settings.StandardMinDownPaymentPercent / 100
		if in.Upfront < minimum {
			return nil, domain.Errorf(domain.EINVALID, op, "upfront payment cannot be less than %s (%s)",
				format.Percent(settings.StandardMinDownPaymentPercent), format.Local(minimum))
		}
		if in.Upfront >= priceAfter {
			return nil, domain.Errorf(domain.EINVALID, op,
				"upfront payment %s leaves nothing to pay in installments", format.Local(in.Upfront))
		}
	}

	r := annuity.MonthlyRate(settings.TimeValueRateAnnual)
	monthly := annuity.Payment(priceAfter-in.Upfront, r, in.TermMonths)
	contract := in.Upfront + annuity.TotalPaid(priceAfter-in.Upfront, r, in.TermMonths)
	theoretical := theoreticalPercent(contract, priceForCalc)

	floored := mathutil.FloorPercent(theoretical)
	finalContract := mathutil.ApplyDiscountPercent(priceForCalc, floored)
	finalMonthly := (finalContract - in.Upfront) / float64(in.TermMonths)

	start := in.StartDate
	if start == (civil.Date{}) {
		start = in.Today
	}
	// The initial entry on the start date is always present, zero without an
	// upfront payment, so schedules of equal terms line up.
	schedule := newSchedule(start, in.TermMonths+1)
	schedule.add(0, EntryUpfront, in.Upfront)
	schedule.monthly(in.TermMonths, finalMonthly)

	return &StandardPlan{
		UnitID:                    in.UnitID,
		ListPrice:                 in.ListPrice,
		PriceForCalc:              priceForCalc,
		TotalRate:                 totalRate,
		PriceAfterDiscounts:       priceAfter,
		Upfront:                   in.Upfront,
		TermMonths:                in.TermMonths,
		MonthsToCutoff:            monthsToCutoff,
		TheoreticalMonthlyPayment: monthly,
		TheoreticalContractValue:  contract,
		TheoreticalDiscount:       theoretical,
		FlooredDiscount:           floored,
		FinalContractValue:        finalContract,
		FinalMonthlyPayment:       finalMonthly,
		Schedule:                  schedule.build(),
	}, nil
}
