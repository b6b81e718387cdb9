// Package format renders money and rates for messages and notifications.
package format

import (
	"math"

	"github.com/ghsales/discount-engine/pkg/constants"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Local returns a whole local-currency amount with thousands separators
// (e.g., "1,234,567 UZS"). Amounts are rounded to whole units for display.
func Local(amount float64) string {
	return printer.Sprintf("%d %s", int64(math.Round(amount)), constants.CurrencyLocal)
}

// USD returns a whole dollar amount with thousands separators (e.g., "$12,345").
func USD(amount float64) string {
	if amount < 0 {
		return printer.Sprintf("-$%d", int64(math.Round(-amount)))
	}
	return printer.Sprintf("$%d", int64(math.Round(amount)))
}

// Percent renders a percentage value with two decimals (e.g., "12.50%").
func Percent(percent float64) string {
	return printer.Sprintf("%.2f%%", percent)
}

// Rate renders a fractional rate as a percentage (0.125 -> "12.50%").
func Rate(rate float64) string {
	return Percent(rate * constants.PercentageMultiplier)
}
