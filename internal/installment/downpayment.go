package installment

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/annuity"
	"github.com/ghsales/discount-engine/pkg/datetime"
	"github.com/ghsales/discount-engine/pkg/format"
	"github.com/ghsales/discount-engine/pkg/mathutil"
)

// AmountUnit is the unit a down payment is entered in.
type AmountUnit string

const (
	AmountPercent AmountUnit = "percent"
	AmountLocal   AmountUnit = "local"
	AmountUSD     AmountUnit = "usd"
)

// ParseAmountUnit accepts percent, local (or uzs) and usd.
func ParseAmountUnit(s string) (AmountUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percent", "%":
		return AmountPercent, nil
	case "", "local", "uzs":
		return AmountLocal, nil
	case "usd":
		return AmountUSD, nil
	}
	return "", fmt.Errorf("unknown down payment unit %q", s)
}

// DownPaymentInput describes a down-payment installment quote.
type DownPaymentInput struct {
	UnitID    int64
	ListPrice float64
	// Row is the unit's mortgage rate row.
	Row                 domain.RateRow
	TermMonths          int
	AdditionalDiscounts map[domain.RateName]float64
	DownPayment         float64
	Unit                AmountUnit
	// USDRate converts USD down payments and shortfalls.
	USDRate   float64
	StartDate civil.Date
}

// DownPaymentPlan is a priced down-payment installment plan.
type DownPaymentPlan struct {
	UnitID              int64   `json:"unitId"`
	ListPrice           float64 `json:"listPrice"`
	PriceForCalc        float64 `json:"priceForCalc"`
	TotalRate           float64 `json:"totalRate"`
	PriceAfterDiscounts float64 `json:"priceAfterDiscounts"`
	DownPayment         float64 `json:"downPayment"`
	MortgageBody        float64 `json:"mortgageBody"`
	TermMonths          int     `json:"termMonths"`

	TheoreticalMonthlyPayment float64 `json:"theoreticalMonthlyPayment"`
	TheoreticalContractValue  float64 `json:"theoreticalContractValue"`
	TheoreticalDiscount       float64 `json:"theoreticalDiscount"`

	FlooredDiscount         float64 `json:"flooredDiscount"`
	FinalContractValue      float64 `json:"finalContractValue"`
	FinalDownPaymentTotal   float64 `json:"finalDownPaymentTotal"`
	FinalMonthlyDownPayment float64 `json:"finalMonthlyDownPayment"`

	Schedule []ScheduleEntry `json:"schedule"`
}

// CalculateDownPayment prices a plan where the down payment is paid in equal
// monthly installments and the rest is financed by a mortgage afterwards. The
// down payment must cover the minimum share of the price and leave a mortgage
// body within the cap.
func CalculateDownPayment(settings domain.CalculatorSettings, params domain.PricingParams, in DownPaymentInput) (*DownPaymentPlan, error) {
	const op = "installment.CalculateDownPayment"

	if !settings.DownPaymentAllowed(in.UnitID) {
		return nil, notWhitelisted(op, in.UnitID, "down payment installment")
	}
	if in.TermMonths < 1 || in.TermMonths > settings.DownPaymentMaxTerm {
		return nil, domain.Errorf(domain.EINVALID, op,
			"down payment installment term must be between 1 and %d months", settings.DownPaymentMaxTerm)
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

	dp, err := downPaymentLocal(op, in, priceAfter)
	if err != nil {
		return nil, err
	}

	minimum := priceAfter * params.MinDownPaymentFraction
	if dp < minimum && !mathutil.WithinTolerance(dp, minimum, 1e-6) {
		return nil, domain.Errorf(domain.EINVALID, op, "down payment cannot be less than %s (%s)",
			format.Rate(params.MinDownPaymentFraction), format.Local(minimum))
	}
	if dp >= priceAfter {
		return nil, domain.Errorf(domain.EINVALID, op,
			"down payment %s covers the whole price; choose full payment instead", format.Local(dp))
	}

	body := priceAfter - dp
	if body > params.MaxMortgageBody {
		return nil, capacityError(op, in, body-params.MaxMortgageBody, priceAfter)
	}

	r := annuity.MonthlyRate(settings.TimeValueRateAnnual)
	monthly := annuity.Payment(dp, r, in.TermMonths)
	contract := annuity.TotalPaid(dp, r, in.TermMonths) + body
	theoretical := theoreticalPercent(contract, priceForCalc)

	floored := mathutil.FloorPercent(theoretical)
	finalContract := mathutil.ApplyDiscountPercent(priceForCalc, floored)
	finalDP := finalContract - body
	finalMonthly := finalDP / float64(in.TermMonths)

	start := in.StartDate
	if start == (civil.Date{}) {
		start = datetime.Today(time.Local)
	}
	schedule := newSchedule(start, in.TermMonths+1)
	schedule.monthly(in.TermMonths, finalMonthly)
	schedule.add(in.TermMonths+1, EntryMortgageBody, body)

	return &DownPaymentPlan{
		UnitID:                    in.UnitID,
		ListPrice:                 in.ListPrice,
		PriceForCalc:              priceForCalc,
		TotalRate:                 totalRate,
		PriceAfterDiscounts:       priceAfter,
		DownPayment:               dp,
		MortgageBody:              body,
		TermMonths:                in.TermMonths,
		TheoreticalMonthlyPayment: monthly,
		TheoreticalContractValue:  contract,
		TheoreticalDiscount:       theoretical,
		FlooredDiscount:           floored,
		FinalContractValue:        finalContract,
		FinalDownPaymentTotal:     finalDP,
		FinalMonthlyDownPayment:   finalMonthly,
		Schedule:                  schedule.build(),
	}, nil
}

func downPaymentLocal(op string, in DownPaymentInput, priceAfter float64) (float64, error) {
	if in.DownPayment <= 0 {
		return 0, domain.Invalid(op, "down payment must be positive")
	}
	switch in.Unit {
	case AmountPercent:
		return priceAfter * in.DownPayment / 100, nil
	case AmountUSD:
		if in.USDRate <= 0 {
			return 0, domain.Invalid(op, "USD rate is required for USD down payments")
		}
		return in.DownPayment * in.USDRate, nil
	case AmountLocal, "":
		return in.DownPayment, nil
	}
	return 0, domain.Errorf(domain.EINVALID, op, "unknown down payment unit %q", in.Unit)
}

// capacityError names the increase of the down payment needed to bring the
// mortgage body under the cap, in the unit the caller used.
func capacityError(op string, in DownPaymentInput, shortfall, priceAfter float64) error {
	var amount string
	switch in.Unit {
	case AmountPercent:
		amount = format.Percent(shortfall / priceAfter * 100)
	case AmountUSD:
		amount = format.USD(shortfall / in.USDRate)
	default:
		amount = format.Local(shortfall)
	}
	return domain.Capacity(op, "mortgage body exceeds the limit; increase the down payment by "+amount)
}
