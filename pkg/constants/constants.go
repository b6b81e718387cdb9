// Package constants provides shared constants for the discount engine.
package constants

import "time"

// DateLayout is the calendar date format used in requests, spreadsheets and
// exports.
const DateLayout = "2006-01-02"

// Pricing defaults
const (
	// DefaultDeduction is subtracted from a unit's list price before any
	// discount is applied.
	DefaultDeduction = 3_000_000.0

	// DefaultMaxMortgageBody is the largest principal a mortgage product may finance.
	DefaultMaxMortgageBody = 420_000_000.0

	// DefaultMinDownPaymentFraction is the minimum share of the discounted price
	// paid up front on financed methods.
	DefaultMinDownPaymentFraction = 0.15

	// TrancheCount is the number of tranches the tranche payment methods split
	// the up-front amount into.
	TrancheCount = 3
)

// Calculator settings defaults
const (
	// DefaultTimeValueRateAnnual is the annual time-value rate in percent.
	DefaultTimeValueRateAnnual = 16.5

	// DefaultDownPaymentMaxTerm is the maximum term in months of the
	// down-payment installment product.
	DefaultDownPaymentMaxTerm = 6

	// DefaultStandardMinDownPaymentPercent is the minimum upfront payment of the
	// standard installment product, in percent of the deducted price.
	DefaultStandardMinDownPaymentPercent = 15.0
)

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// RateEpsilon is the tolerance below which two rates are considered equal.
	RateEpsilon = 1e-9

)

// Currency codes
const (
	CurrencyLocal = "UZS"
	CurrencyUSD   = "USD"

	// DefaultUSDRate is the manual USD to local currency rate used until an
	// operator or the central bank feed provides one.
	DefaultUSDRate = 13050.0

	// DefaultCBUURL serves the central bank's USD quote as JSON.
	DefaultCBUURL = "https://cbu.uz/ru/arkhiv-kursov-valyut/json/USD/"
	// DefaultCBUTimeout bounds one central bank request.
	DefaultCBUTimeout = 10 * time.Second

	CurrencySourceManual = "manual"
	CurrencySourceCBU    = "cbu"
)

// Mail defaults
const (
	DefaultMailPort    = 587
	DefaultMailTimeout = 30 * time.Second
)

// Database defaults
const DefaultDatabaseMaxConns = 10

// Inventory statuses that make a unit a pricing candidate.
var DefaultAvailableStatuses = []string{"Маркетинговый резерв", "Подбор"}

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. DISCOUNT_DATABASE_URL.
	EnvPrefix = "DISCOUNT"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum spreadsheet upload size (4 MB)
	DefaultMaxUploadSizeBytes int64 = 4 * 1024 * 1024
)
