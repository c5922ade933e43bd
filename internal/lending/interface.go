package lending

import "github.com/iwvelando/microloan/internal/domain"

// Repository is the loan book storage.
type Repository interface {
	SaveLoan(l domain.Loan) error
	Loan(id string) (domain.Loan, error)
	Loans() ([]domain.Loan, error)
	SavePayment(p domain.Payment) error
	Payments(loanID string) ([]domain.Payment, error)
	Borrower(id string) (domain.Borrower, error)
}

// Applications is the part of the application workflow disbursement needs.
type Applications interface {
	Get(id string) (domain.Application, error)
	MarkDisbursed(id, loanID, actor string) (domain.Application, error)
}
