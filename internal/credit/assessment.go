// Package credit scores a borrower's capacity to take on a new loan.
package credit

import (
	"errors"
	"fmt"

	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/mathutil"
)

// Grade is a risk band derived from the credit score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// Recommendation is the assessment outcome.
type Recommendation string

const (
	Approve Recommendation = "approve"
	Review  Recommendation = "review"
	Decline Recommendation = "decline"
)

const (
	minScore = 300
	maxScore = 850

	declineScore = 500
	declineDTI   = 50.0
	reviewDTI    = 40.0
)

var ErrInvalidScore = fmt.Errorf("credit score must be between %d and %d", minScore, maxScore)

// ErrInvalidIncome is returned for non-positive monthly income.
var ErrInvalidIncome = errors.New("monthly income must be greater than zero")

// Input is what the officer knows about the borrower and the proposed loan.
type Input struct {
	CreditScore         int     `json:"creditScore"`
	MonthlyIncome       float64 `json:"monthlyIncome"`
	MonthlyExpenses     float64 `json:"monthlyExpenses"`
	ExistingMonthlyDebt float64 `json:"existingMonthlyDebt"`
	// ProposedInstallment is the new loan's installment expressed per month.
	ProposedInstallment float64 `json:"proposedInstallment"`
	KYCVerified         bool    `json:"kycVerified"`
}

// Result is a completed assessment.
type Result struct {
	Grade                Grade          `json:"grade"`
	DebtToIncome         float64        `json:"debtToIncome"`
	DisposableIncome     float64        `json:"disposableIncome"`
	MaxAffordableMonthly float64        `json:"maxAffordableMonthly"`
	Recommendation       Recommendation `json:"recommendation"`
	Reasons              []string       `json:"reasons,omitempty"`
}

// GradeFor maps a score to its risk band.
func GradeFor(score int) Grade {
	switch {
	case score >= 750:
		return GradeA
	case score >= 680:
		return GradeB
	case score >= 600:
		return GradeC
	case score >= declineScore:
		return GradeD
	default:
		return GradeE
	}
}

// Assess computes debt-to-income and recommends approve, review or decline.
// Decline reasons outrank review reasons.
func Assess(in Input) (Result, error) {
	if in.CreditScore < minScore || in.CreditScore > maxScore {
		return Result{}, ErrInvalidScore
	}
	if in.MonthlyIncome <= 0 {
		return Result{}, ErrInvalidIncome
	}

	debt := in.ExistingMonthlyDebt + in.ProposedInstallment
	res := Result{
		Grade:                GradeFor(in.CreditScore),
		DebtToIncome:         mathutil.Round(mathutil.Ratio(debt, in.MonthlyIncome)),
		DisposableIncome:     mathutil.Round(in.MonthlyIncome - in.MonthlyExpenses - debt),
		MaxAffordableMonthly: mathutil.Round(max(0, in.MonthlyIncome*constants.MaxAffordableIncomeShare-in.ExistingMonthlyDebt)),
		Recommendation:       Approve,
	}

	var declines, reviews []string
	if in.CreditScore < declineScore {
		declines = append(declines, fmt.Sprintf("credit score %d is below %d", in.CreditScore, declineScore))
	}
	if res.DebtToIncome > declineDTI {
		declines = append(declines, fmt.Sprintf("debt-to-income %.1f%% exceeds %.0f%%", res.DebtToIncome, declineDTI))
	} else if res.DebtToIncome > reviewDTI {
		reviews = append(reviews, fmt.Sprintf("debt-to-income %.1f%% exceeds %.0f%%", res.DebtToIncome, reviewDTI))
	}
	if res.Grade == GradeD {
		reviews = append(reviews, "credit grade D requires officer review")
	}
	if res.DisposableIncome < 0 {
		reviews = append(reviews, "expenses and debt exceed income")
	}
	if !in.KYCVerified {
		reviews = append(reviews, "KYC verification is incomplete")
	}

	switch {
	case len(declines) > 0:
		res.Recommendation = Decline
		res.Reasons = append(declines, reviews...)
	case len(reviews) > 0:
		res.Recommendation = Review
		res.Reasons = reviews
	}
	return res, nil
}
