// Package sample loads a small demonstration loan book.
package sample

import (
	"fmt"
	"time"

	"github.com/iwvelando/microloan/internal/application"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/internal/lending"
	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/loans"
	"go.uber.org/zap"
)

// Store is the storage the sample data is written to.
type Store interface {
	Reset()
	SaveBorrower(b domain.Borrower) error
}

// Loader seeds the loan book through the regular services.
type Loader struct {
	Store        Store
	Applications *application.Service
	Lending      *lending.Service
	Logger       *zap.Logger
}

// Summary counts what was loaded.
type Summary struct {
	Borrowers     int    `json:"borrowers"`
	Applications  int    `json:"applications"`
	Loans         int    `json:"loans"`
	Payments      int    `json:"payments"`
	OverdueLoanID string `json:"overdueLoanId"`
}

// Borrowers returns the demonstration borrowers. IDs are stable.
func Borrowers(createdAt time.Time) []domain.Borrower {
	return []domain.Borrower{
		{ID: "BRW-001", FullName: "Amina Odhiambo", Email: "amina@example.com", Phone: "+254712345678", NationalID: "12345678",
			BusinessName: "Amina Tailoring", CreditScore: 720, KYCStatus: domain.KYCVerified, MonthlyIncome: 60000, CreatedAt: createdAt},
		{ID: "BRW-002", FullName: "Joseph Mwangi", Email: "joseph@example.com", Phone: "+254723456789", NationalID: "23456789",
			BusinessName: "Mwangi Hardware", CreditScore: 640, KYCStatus: domain.KYCVerified, MonthlyIncome: 45000, CreatedAt: createdAt},
		{ID: "BRW-003", FullName: "Grace Wanjiru", Phone: "+254734567890", NationalID: "34567890",
			BusinessName: "Wanjiru Dairy", CreditScore: 690, KYCStatus: domain.KYCVerified, MonthlyIncome: 80000, CreatedAt: createdAt},
		{ID: "BRW-004", FullName: "Peter Otieno", Phone: "+254745678901", NationalID: "45678901",
			CreditScore: 580, KYCStatus: domain.KYCPending, MonthlyIncome: 30000, CreatedAt: createdAt},
	}
}

type seedLoan struct {
	borrower  string
	product   string
	principal float64
	term      int
	freq      loans.Frequency
	// monthsAgo is when the loan was disbursed relative to asOf.
	monthsAgo int
	// paid is the number of installments repaid on time; negative repays
	// every installment due before asOf.
	paid int
}

var seedLoans = []seedLoan{
	{borrower: "BRW-001", product: "Business Starter", principal: 20000, term: 12, freq: loans.Monthly, monthsAgo: 4, paid: -1},
	{borrower: "BRW-002", product: "Emergency", principal: 12000, term: 6, freq: loans.Monthly, monthsAgo: 3, paid: 1},
	{borrower: "BRW-003", product: "Business Starter", principal: 8000, term: 6, freq: loans.Weekly, monthsAgo: 2, paid: -1},
}

// Load replaces the loan book with the demonstration data as of asOf. One
// loan is left in arrears.
func (l *Loader) Load(asOf time.Time) (Summary, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l.Store.Reset()

	var summary Summary
	for _, b := range Borrowers(asOf.AddDate(0, -6, 0)) {
		if err := l.Store.SaveBorrower(b); err != nil {
			return Summary{}, err
		}
		summary.Borrowers++
	}

	methods := []domain.PaymentMethod{domain.MethodMobileMoney, domain.MethodBankTransfer, domain.MethodCash}
	for i, seed := range seedLoans {
		app, err := l.approved(seed)
		if err != nil {
			return Summary{}, err
		}
		summary.Applications++

		loan, err := l.Lending.Disburse(app.ID, "loan officer", asOf.AddDate(0, -seed.monthsAgo, 0))
		if err != nil {
			return Summary{}, fmt.Errorf("disbursing sample loan for %s: %w", seed.borrower, err)
		}
		summary.Loans++

		for n, row := range loan.Schedule {
			if !row.DueDate.Before(asOf) || (seed.paid >= 0 && n >= seed.paid) {
				break
			}
			_, _, err := l.Lending.RecordRepayment(lending.RepaymentRequest{
				LoanID: loan.ID,
				Amount: row.Payment,
				Method: methods[(i+n)%len(methods)],
				PaidAt: row.DueDate,
				Policy: allocation.Scheduled,
			})
			if err != nil {
				return Summary{}, fmt.Errorf("repaying sample loan %s: %w", loan.ID, err)
			}
			summary.Payments++
		}
		if seed.paid >= 0 {
			summary.OverdueLoanID = loan.ID
		}
	}

	if err := l.pipeline(); err != nil {
		return Summary{}, err
	}
	summary.Applications += 2

	if _, err := l.Lending.RefreshArrears(asOf); err != nil {
		return Summary{}, err
	}

	logger.Info(fmt.Sprintf("loaded %d borrowers, %d loans and %d payments",
		summary.Borrowers, summary.Loans, summary.Payments),
		zap.String("op", "sample.Load"),
	)
	return summary, nil
}

func (l *Loader) approved(seed seedLoan) (domain.Application, error) {
	app, err := l.Applications.Create(application.CreateRequest{
		BorrowerID: seed.borrower,
		Product:    seed.product,
		Principal:  seed.principal,
		TermMonths: seed.term,
		Frequency:  seed.freq,
		Purpose:    "working capital",
		Actor:      seed.borrower,
	})
	if err != nil {
		return domain.Application{}, err
	}
	steps := []func(string) (domain.Application, error){
		func(id string) (domain.Application, error) { return l.Applications.Submit(id, seed.borrower) },
		func(id string) (domain.Application, error) { return l.Applications.StartReview(id, "loan officer") },
		func(id string) (domain.Application, error) { return l.Applications.Approve(id, "loan officer", "") },
	}
	for _, step := range steps {
		if app, err = step(app.ID); err != nil {
			return domain.Application{}, err
		}
	}
	return app, nil
}

// pipeline adds applications still in review: one waiting on documents and
// one draft.
func (l *Loader) pipeline() error {
	app, err := l.Applications.Create(application.CreateRequest{
		BorrowerID: "BRW-003", Product: "Agriculture", Principal: 50000, TermMonths: 12,
		Frequency: loans.Monthly, Purpose: "dairy cattle", Actor: "BRW-003",
	})
	if err != nil {
		return err
	}
	if _, err := l.Applications.Submit(app.ID, "BRW-003"); err != nil {
		return err
	}
	if _, err := l.Applications.StartReview(app.ID, "loan officer"); err != nil {
		return err
	}
	if _, err := l.Applications.RequestDocuments(app.ID, "loan officer", []string{"Land title", "Bank statements (6 months)"}); err != nil {
		return err
	}

	_, err = l.Applications.Create(application.CreateRequest{
		BorrowerID: "BRW-004", Product: "Business Growth", Principal: 100000, TermMonths: 24,
		Frequency: loans.Monthly, Purpose: "shop expansion", Actor: "BRW-004",
	})
	return err
}
