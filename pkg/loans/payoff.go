package loans

import (
	"errors"
	"math"
	"time"

	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/datetime"
	"github.com/iwvelando/microloan/pkg/mathutil"
)

var (
	// ErrInvalidBalance is returned for a negative or non-finite remaining principal.
	ErrInvalidBalance = errors.New("remaining principal cannot be negative")
	// ErrInvalidDiscount is returned for a discount rate outside [0, 100].
	ErrInvalidDiscount = errors.New("discount rate must be between 0 and 100 percent")
)

// EarlyRepaymentInput describes a loan being paid off ahead of schedule.
type EarlyRepaymentInput struct {
	RemainingPrincipal float64   `json:"remainingPrincipal"`
	TermMonths         int       `json:"termMonths"`
	StartDate          time.Time `json:"startDate"`
	// DiscountRate is the percent discount before the term midpoint; zero
	// means constants.DefaultEarlyRepaymentDiscount.
	DiscountRate float64 `json:"discountRate,omitempty"`
}

// Payoff is an early-repayment quote.
type Payoff struct {
	MonthsElapsed      int     `json:"monthsElapsed"`
	RemainingPrincipal float64 `json:"remainingPrincipal"`
	Discount           float64 `json:"discount"`
	TotalPayoff        float64 `json:"totalPayoff"`
}

// CalculateEarlyRepayment quotes the payoff amount as of asOf. Payoffs made
// strictly before the midpoint of the term earn the discount on remaining
// principal; from the midpoint onward there is no discount.
func CalculateEarlyRepayment(in EarlyRepaymentInput, asOf time.Time) (Payoff, error) {
	if in.TermMonths <= 0 {
		return Payoff{}, ErrInvalidTerm
	}
	if in.RemainingPrincipal < 0 || !finite(in.RemainingPrincipal) {
		return Payoff{}, ErrInvalidBalance
	}
	if in.DiscountRate < 0 || in.DiscountRate > 100 || math.IsNaN(in.DiscountRate) {
		return Payoff{}, ErrInvalidDiscount
	}
	rate := in.DiscountRate
	if rate == 0 {
		rate = constants.DefaultEarlyRepaymentDiscount
	}

	elapsed := datetime.MonthsBetween(in.StartDate, asOf)
	if elapsed < 0 {
		elapsed = 0
	}

	discount := 0.0
	if float64(elapsed) < float64(in.TermMonths)/2 {
		discount = mathutil.Round(in.RemainingPrincipal * mathutil.Percent(rate))
	}

	remaining := mathutil.Round(in.RemainingPrincipal)
	return Payoff{
		MonthsElapsed:      elapsed,
		RemainingPrincipal: remaining,
		Discount:           discount,
		TotalPayoff:        mathutil.Round(remaining - discount),
	}, nil
}
