package domain

import (
	"time"

	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/loans"
)

// LoanStatus is the lifecycle state of a disbursed loan.
type LoanStatus string

const (
	LoanActive LoanStatus = "active"
	LoanClosed LoanStatus = "closed"
)

// Loan is a disbursed loan and its running balances.
type Loan struct {
	ID            string             `json:"id"`
	BorrowerID    string             `json:"borrowerId"`
	ApplicationID string             `json:"applicationId,omitempty"`
	Product       string             `json:"product"`
	Principal     float64            `json:"principal"`
	TermMonths    int                `json:"termMonths"`
	AnnualRate    float64            `json:"annualRate"`
	InterestType  loans.InterestType `json:"interestType"`
	Frequency     loans.Frequency    `json:"frequency"`
	Installment   float64            `json:"installment"`
	Status        LoanStatus         `json:"status"`
	DisbursedAt   time.Time          `json:"disbursedAt"`
	NextDueDate   *time.Time         `json:"nextDueDate,omitempty"`

	// Outstanding is the remaining principal balance.
	Outstanding   float64 `json:"outstanding"`
	PrincipalPaid float64 `json:"principalPaid"`
	InterestPaid  float64 `json:"interestPaid"`
	FeesPaid      float64 `json:"feesPaid"`
	OverdueDays   int     `json:"overdueDays"`
	Penalty       float64 `json:"penalty"`

	Schedule []loans.Installment `json:"schedule,omitempty"`
}

// Input returns the calculation input the loan was priced with.
func (l Loan) Input() loans.InstallmentInput {
	return loans.InstallmentInput{
		Principal:    l.Principal,
		TermMonths:   l.TermMonths,
		AnnualRate:   l.AnnualRate,
		Frequency:    l.Frequency,
		InterestType: l.InterestType,
	}
}

// PaymentMethod is how a repayment reached the lender.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// ReconciliationStatus tracks whether a payment has been matched to the books.
type ReconciliationStatus string

const (
	ReconciliationPending     ReconciliationStatus = "pending"
	ReconciliationReconciled  ReconciliationStatus = "reconciled"
	ReconciliationDiscrepancy ReconciliationStatus = "discrepancy"
	ReconciliationUnmatched   ReconciliationStatus = "unmatched"
)

// Payment is a repayment received against a loan.
type Payment struct {
	ID             string               `json:"id"`
	LoanID         string               `json:"loanId"`
	Amount         float64              `json:"amount"`
	PaidAt         time.Time            `json:"paidAt"`
	Method         PaymentMethod        `json:"method"`
	Reference      string               `json:"reference,omitempty"`
	Reconciliation ReconciliationStatus `json:"reconciliation"`
	Allocation     allocation.Split     `json:"allocation"`
}
