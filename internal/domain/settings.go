package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/go-playground/validator/v10"
)

var settingsValidator = validator.New()

// CalculatorSettings configures the installment calculators. There is a
// single record; calculators read it fresh on every call.
type CalculatorSettings struct {
	StandardWhitelist             []int64 `json:"standardWhitelist" yaml:"standardWhitelist" validate:"omitempty,dive,gt=0"`
	DownPaymentWhitelist          []int64 `json:"downPaymentWhitelist" yaml:"downPaymentWhitelist" validate:"omitempty,dive,gt=0"`
	DownPaymentMaxTerm            int     `json:"downPaymentMaxTerm" yaml:"downPaymentMaxTerm" validate:"gte=1,lte=120"`
	TimeValueRateAnnual           float64 `json:"timeValueRateAnnual" yaml:"timeValueRateAnnual" validate:"gte=0,lte=100"`
	StandardMinDownPaymentPercent float64 `json:"standardMinDownPaymentPercent" yaml:"standardMinDownPaymentPercent" validate:"gte=0,lte=100"`
}

// DefaultCalculatorSettings returns the settings seeded on first start.
func DefaultCalculatorSettings() CalculatorSettings {
	return CalculatorSettings{
		StandardWhitelist:             []int64{},
		DownPaymentWhitelist:          []int64{},
		DownPaymentMaxTerm:            constants.DefaultDownPaymentMaxTerm,
		TimeValueRateAnnual:           constants.DefaultTimeValueRateAnnual,
		StandardMinDownPaymentPercent: constants.DefaultStandardMinDownPaymentPercent,
	}
}

// StandardAllowed reports whether the unit may use the standard installment product.
func (s CalculatorSettings) StandardAllowed(unitID int64) bool {
	return slices.Contains(s.StandardWhitelist, unitID)
}

// DownPaymentAllowed reports whether the unit may use the down-payment installment product.
func (s CalculatorSettings) DownPaymentAllowed(unitID int64) bool {
	return slices.Contains(s.DownPaymentWhitelist, unitID)
}

// Validate checks the settings against their validate tags, the same rules
// the HTTP API applies.
func (s CalculatorSettings) Validate() error {
	err := settingsValidator.Struct(s)
	var fieldErrs validator.ValidationErrors
	if err == nil || !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Clone returns a deep copy of the settings.
func (s CalculatorSettings) Clone() CalculatorSettings {
	out := s
	out.StandardWhitelist = append([]int64{}, s.StandardWhitelist...)
	out.DownPaymentWhitelist = append([]int64{}, s.DownPaymentWhitelist...)
	return out
}

// PricingParams are the configurable constants of the pricing engine.
type PricingParams struct {
	Deduction              float64
	MaxMortgageBody        float64
	MinDownPaymentFraction float64
	AvailableStatuses      []string
}

// DefaultPricingParams returns the deployed constants.
func DefaultPricingParams() PricingParams {
	return PricingParams{
		Deduction:              constants.DefaultDeduction,
		MaxMortgageBody:        constants.DefaultMaxMortgageBody,
		MinDownPaymentFraction: constants.DefaultMinDownPaymentFraction,
		AvailableStatuses:      append([]string(nil), constants.DefaultAvailableStatuses...),
	}
}

// Available reports whether a unit in the given status is a pricing candidate.
func (p PricingParams) Available(status string) bool {
	return slices.Contains(p.AvailableStatuses, status)
}
