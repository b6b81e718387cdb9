// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"
	"time"

	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// PricingConfig is the part of the pricing configuration that is checked.
type PricingConfig struct {
	Deduction              float64
	MaxMortgageBody        float64
	MinDownPaymentFraction float64
	AvailableStatuses      []string
}

// CurrencyConfig is the part of the currency configuration that is checked.
type CurrencyConfig struct {
	Source     string
	ManualRate float64
	Timeout    time.Duration
}

// MailConfig is the part of the mail configuration that is checked.
type MailConfig struct {
	Enabled    bool
	Host       string
	From       string
	Recipients []string
}

// ConfigValidator collects the configuration sections that produce warnings.
type ConfigValidator struct {
	DatabaseURL string
	Pricing     PricingConfig
	Currency    CurrencyConfig
	Mail        MailConfig
}

// ValidatePricing flags pricing constants that are legal but unlikely to be
// intended.
func ValidatePricing(p PricingConfig) []string {
	var warnings []string
	if p.Deduction != constants.DefaultDeduction {
		warnings = append(warnings, fmt.Sprintf("Pricing deduction %.0f differs from the deployed default %.0f",
			p.Deduction, constants.DefaultDeduction))
	}
	if p.MaxMortgageBody < p.Deduction {
		warnings = append(warnings, fmt.Sprintf("Maximum mortgage body %.0f is below the deduction %.0f - every financed unit needs a full down payment",
			p.MaxMortgageBody, p.Deduction))
	}
	if p.MinDownPaymentFraction == 0 {
		warnings = append(warnings, "Minimum down payment fraction is zero - mortgages need no down payment below the maximum body")
	}
	if len(p.AvailableStatuses) == 0 {
		warnings = append(warnings, "No available statuses configured - budget search will never match a unit")
	}
	return warnings
}

// ValidateCurrency flags exchange rate settings that fall back silently.
func ValidateCurrency(c CurrencyConfig) []string {
	var warnings []string
	switch c.Source {
	case constants.CurrencySourceManual:
		if c.ManualRate == constants.DefaultUSDRate {
			warnings = append(warnings, fmt.Sprintf("Using the built-in manual USD rate %.2f", c.ManualRate))
		}
	case constants.CurrencySourceCBU:
		if c.Timeout > 30*time.Second {
			warnings = append(warnings, fmt.Sprintf("Central bank timeout %s delays every USD quote when the feed is down", c.Timeout))
		}
	}
	return warnings
}

// ValidateMail flags a mail setup that cannot deliver anything.
func ValidateMail(m MailConfig) []string {
	if !m.Enabled {
		return nil
	}
	var warnings []string
	if m.Host == "" {
		warnings = append(warnings, "Mail is enabled but no host is set - notifications will only be logged")
	}
	if len(m.Recipients) == 0 {
		warnings = append(warnings, "Mail is enabled but has no recipients - notifications will be skipped")
	}
	for _, r := range m.Recipients {
		if err := validate.Var(r, "email"); err != nil {
			warnings = append(warnings, fmt.Sprintf("Mail recipient '%s' is not a valid address", r))
		}
	}
	return warnings
}

// ValidateAll validates the entire configuration and returns warnings
func (cv *ConfigValidator) ValidateAll() []string {
	var warnings []string
	if cv.DatabaseURL == "" {
		warnings = append(warnings, "No database url configured - versions are kept in memory and lost on restart")
	}
	warnings = append(warnings, ValidatePricing(cv.Pricing)...)
	warnings = append(warnings, ValidateCurrency(cv.Currency)...)
	warnings = append(warnings, ValidateMail(cv.Mail)...)
	return warnings
}
