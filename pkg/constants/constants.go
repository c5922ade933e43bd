// Package constants provides shared constants for the microloan application.
package constants

// DateLayout is the calendar date format used in requests, config files and
// output.
const DateLayout = "2006-01-02"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01
)

// Installments per month for each repayment frequency.
const (
	WeeklyInstallmentsPerMonth   = 4
	BiweeklyInstallmentsPerMonth = 2
	MonthlyInstallmentsPerMonth  = 1
)

// MaxTermMonths is the longest loan term accepted (30 years).
const MaxTermMonths = 360

// Lending defaults
const (
	// DefaultInterestShare is the share of a payment treated as interest under
	// the interest-first policy.
	DefaultInterestShare = 0.20

	// DefaultPrincipalShare is the minimum share of a payment treated as
	// principal under the principal-first policy.
	DefaultPrincipalShare = 0.80

	// DefaultInterestCap caps the interest portion of a suggested allocation.
	DefaultInterestCap = 500.0

	// DefaultEarlyRepaymentDiscount is the percent discount on remaining
	// principal for payoffs before the term midpoint.
	DefaultEarlyRepaymentDiscount = 5.0

	// DefaultDailyPenaltyRate is the percent of an overdue installment charged
	// per day late.
	DefaultDailyPenaltyRate = 0.1

	// DefaultPARThresholdDays is the overdue threshold used for portfolio at risk.
	DefaultPARThresholdDays = 30

	// MaxAffordableIncomeShare is the share of monthly income that may go to
	// debt service.
	MaxAffordableIncomeShare = 0.40
)

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
	DefaultConfigFile = "microloan.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodyBytes limits JSON request bodies (256 KB)
	DefaultMaxBodyBytes int64 = 256 * 1024

	// DefaultRateLimitCapacity is the number of requests a client may make per window
	DefaultRateLimitCapacity = 60

	// DefaultCacheBackend keeps drafts and quotes in process memory
	DefaultCacheBackend = "memory"

	// DefaultRedisAddress is used when the redis cache backend has no address
	DefaultRedisAddress = "localhost:6379"
)
