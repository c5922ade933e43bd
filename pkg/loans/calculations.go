// Package loans provides installment, schedule, payoff and penalty
// calculations for microfinance loan products.
package loans

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/mathutil"
)

// Frequency is how often installments fall due.
type Frequency string

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

// InterestType selects how interest accrues over the term.
type InterestType string

const (
	// Flat interest is charged on the full original principal for the whole term.
	Flat InterestType = "flat"
	// Reducing interest is charged on the outstanding balance each period.
	Reducing InterestType = "reducing"
)

var (
	ErrInvalidPrincipal    = errors.New("principal must be greater than zero")
	ErrInvalidTerm         = errors.New("term must be at least one month")
	ErrInvalidRate         = errors.New("interest rate cannot be negative")
	ErrUnknownFrequency    = errors.New("unknown repayment frequency")
	ErrUnknownInterestType = errors.New("unknown interest type")
	ErrNonFiniteQuote      = errors.New("installment is not a finite amount")
)

// InstallmentInput holds the parameters of an installment quote.
type InstallmentInput struct {
	Principal    float64      `json:"principal" yaml:"principal"`
	TermMonths   int          `json:"termMonths" yaml:"termMonths"`
	AnnualRate   float64      `json:"annualRate" yaml:"annualRate"` // percent, e.g. 12.5
	Frequency    Frequency    `json:"frequency" yaml:"frequency"`
	InterestType InterestType `json:"interestType" yaml:"interestType"`
}

// Quote is the result of an installment calculation.
type Quote struct {
	Installment       float64 `json:"installment" yaml:"installment"`
	TotalInstallments int     `json:"totalInstallments" yaml:"totalInstallments"`
	TotalRepayment    float64 `json:"totalRepayment" yaml:"totalRepayment"`
	TotalInterest     float64 `json:"totalInterest" yaml:"totalInterest"`
}

// InstallmentsPerMonth returns how many installments a frequency yields per month.
func InstallmentsPerMonth(freq Frequency) (int, error) {
	switch freq {
	case Weekly:
		return constants.WeeklyInstallmentsPerMonth, nil
	case Biweekly:
		return constants.BiweeklyInstallmentsPerMonth, nil
	case Monthly, "":
		return constants.MonthlyInstallmentsPerMonth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFrequency, freq)
	}
}

// Validate checks the input and returns the total number of installments.
func (in InstallmentInput) Validate() (int, error) {
	if in.Principal <= 0 || math.IsNaN(in.Principal) || math.IsInf(in.Principal, 0) {
		return 0, ErrInvalidPrincipal
	}
	if in.TermMonths <= 0 {
		return 0, ErrInvalidTerm
	}
	if in.TermMonths > constants.MaxTermMonths {
		return 0, fmt.Errorf("%w: %d exceeds %d months", ErrInvalidTerm, in.TermMonths, constants.MaxTermMonths)
	}
	if in.AnnualRate < 0 || math.IsNaN(in.AnnualRate) || math.IsInf(in.AnnualRate, 0) {
		return 0, ErrInvalidRate
	}
	switch in.InterestType {
	case Flat, Reducing:
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownInterestType, in.InterestType)
	}
	perMonth, err := InstallmentsPerMonth(in.Frequency)
	if err != nil {
		return 0, err
	}
	return in.TermMonths * perMonth, nil
}

// PeriodicRate returns the interest rate applied per installment period for a
// reducing-balance loan: the monthly rate (annual / 12) spread evenly over the
// installments falling in one month.
func PeriodicRate(annualRate float64, freq Frequency) (float64, error) {
	perMonth, err := InstallmentsPerMonth(freq)
	if err != nil {
		return 0, err
	}
	return mathutil.Percent(annualRate) / constants.MonthsPerYear / float64(perMonth), nil
}

// FlatInterest returns the total interest charged on a flat-rate loan.
func FlatInterest(principal, annualRate float64, termMonths int) float64 {
	return principal * mathutil.Percent(annualRate) * (float64(termMonths) / constants.MonthsPerYear)
}

// AnnuityPayment returns the level payment that amortizes principal over n
// periods at periodic rate r.
func AnnuityPayment(principal, r float64, n int) float64 {
	if r == 0 {
		return principal / float64(n)
	}
	growth := math.Pow(1+r, float64(n))
	return principal * r * growth / (growth - 1)
}

// CalculateInstallment computes the per-installment amount for a loan.
//
// Flat:     (principal + principal*rate*(term/12)) / installments
// Reducing: principal * r(1+r)^n / ((1+r)^n - 1)
func CalculateInstallment(in InstallmentInput) (Quote, error) {
	n, err := in.Validate()
	if err != nil {
		return Quote{}, err
	}

	var installment float64
	switch in.InterestType {
	case Flat:
		installment = (in.Principal + FlatInterest(in.Principal, in.AnnualRate, in.TermMonths)) / float64(n)
	case Reducing:
		r, err := PeriodicRate(in.AnnualRate, in.Frequency)
		if err != nil {
			return Quote{}, err
		}
		installment = AnnuityPayment(in.Principal, r, n)
	}

	total := installment * float64(n)
	if !finite(installment) || !finite(total) {
		return Quote{}, ErrNonFiniteQuote
	}
	return Quote{
		Installment:       installment,
		TotalInstallments: n,
		TotalRepayment:    mathutil.Round(total),
		TotalInterest:     mathutil.Round(total - in.Principal),
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CalculatePenalty returns the late charge on an overdue installment using a
// simple daily percentage.
func CalculatePenalty(installmentAmount float64, overdueDays int, dailyRate float64) float64 {
	if overdueDays <= 0 || installmentAmount <= 0 || dailyRate <= 0 {
		return 0
	}
	return mathutil.Round(installmentAmount * mathutil.Percent(dailyRate) * float64(overdueDays))
}
