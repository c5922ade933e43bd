// Package allocation splits a received payment into fees, interest and
// principal portions.
package allocation

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/mathutil"
)

// Policy selects how a payment is split.
type Policy string

const (
	// InterestFirst books a capped share of the payment as interest.
	InterestFirst Policy = "interest_first"
	// PrincipalFirst books as much of the payment as principal as the cap allows.
	PrincipalFirst Policy = "principal_first"
	// Scheduled pays the interest due on the schedule, then principal.
	Scheduled Policy = "scheduled"
)

var (
	ErrInvalidAmount = errors.New("payment amount must be greater than zero")
	ErrUnknownPolicy = errors.New("unknown allocation policy")
	ErrInvalidRules  = errors.New("invalid allocation rules")
)

// Rules parameterize the heuristic policies.
type Rules struct {
	InterestShare  float64 `json:"interestShare" yaml:"interestShare" mapstructure:"interestShare"`
	InterestCap    float64 `json:"interestCap" yaml:"interestCap" mapstructure:"interestCap"`
	PrincipalShare float64 `json:"principalShare" yaml:"principalShare" mapstructure:"principalShare"`
}

// DefaultRules returns the standard 20% / 500 / 80% rules.
func DefaultRules() Rules {
	return Rules{
		InterestShare:  constants.DefaultInterestShare,
		InterestCap:    constants.DefaultInterestCap,
		PrincipalShare: constants.DefaultPrincipalShare,
	}
}

// Validate checks that shares are fractions and the cap is non-negative.
func (r Rules) Validate() error {
	if r.InterestShare < 0 || r.InterestShare > 1 {
		return fmt.Errorf("%w: interest share %.2f outside [0, 1]", ErrInvalidRules, r.InterestShare)
	}
	if r.PrincipalShare < 0 || r.PrincipalShare > 1 {
		return fmt.Errorf("%w: principal share %.2f outside [0, 1]", ErrInvalidRules, r.PrincipalShare)
	}
	if r.InterestCap < 0 {
		return fmt.Errorf("%w: interest cap %.2f is negative", ErrInvalidRules, r.InterestCap)
	}
	return nil
}

// Outstanding is what the borrower currently owes, by component. A zero
// value means the component is unknown or nothing is due.
type Outstanding struct {
	Fees      float64 `json:"fees"`
	Interest  float64 `json:"interest"`
	Principal float64 `json:"principal"`
}

// Split is a suggested allocation. Fees+Interest+Principal+Overpayment
// always equals Amount.
type Split struct {
	Policy      Policy  `json:"policy"`
	Amount      float64 `json:"amount"`
	Fees        float64 `json:"fees"`
	Interest    float64 `json:"interest"`
	Principal   float64 `json:"principal"`
	Overpayment float64 `json:"overpayment,omitempty"`
}

// ParsePolicy converts user input to a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch p := Policy(value); p {
	case InterestFirst, PrincipalFirst, Scheduled:
		return p, nil
	case "":
		return InterestFirst, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, value)
	}
}

// Allocate splits amount according to policy. Outstanding fees are always
// settled first; the rest is split by the policy.
func Allocate(amount float64, policy Policy, rules Rules, owed Outstanding) (Split, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Split{}, ErrInvalidAmount
	}
	if err := rules.Validate(); err != nil {
		return Split{}, err
	}

	amount = mathutil.Round(amount)
	split := Split{Policy: policy, Amount: amount}

	split.Fees = mathutil.Round(mathutil.Clamp(owed.Fees, 0, amount))
	rest := mathutil.Round(amount - split.Fees)

	switch policy {
	case InterestFirst:
		split.Interest = mathutil.Round(math.Min(rules.InterestShare*rest, rules.InterestCap))
		split.Principal = mathutil.Round(rest - split.Interest)
	case PrincipalFirst:
		split.Principal = mathutil.Round(math.Max(rest-rules.InterestCap, rules.PrincipalShare*rest))
		split.Interest = mathutil.Round(rest - split.Principal)
	case Scheduled:
		split.Interest = mathutil.Round(mathutil.Clamp(owed.Interest, 0, rest))
		rest = mathutil.Round(rest - split.Interest)
		split.Principal = rest
		if owed.Principal > 0 && rest > owed.Principal {
			split.Principal = mathutil.Round(owed.Principal)
			split.Overpayment = mathutil.Round(rest - split.Principal)
		}
	default:
		return Split{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	return split, nil
}
