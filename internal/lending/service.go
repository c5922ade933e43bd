// Package lending disburses loans and collects repayments against them.
package lending

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/datetime"
	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/iwvelando/microloan/pkg/mathutil"
	"go.uber.org/zap"
)

var (
	ErrNotApproved      = errors.New("application is not approved")
	ErrLoanClosed       = errors.New("loan is closed")
	ErrUnknownProduct   = errors.New("unknown loan product")
	ErrInvalidRepayment = errors.New("invalid repayment")
	ErrDisbursed        = errors.New("application already disbursed")
	ErrProductLimits    = errors.New("loan outside product limits")
)

// Options are the lending rules from configuration.
type Options struct {
	Products               loans.Catalog
	Rules                  allocation.Rules
	DefaultPolicy          allocation.Policy
	EarlyRepaymentDiscount float64
	DailyPenaltyRate       float64
}

// DefaultOptions returns the built-in lending rules.
func DefaultOptions() Options {
	return Options{
		Products:               loans.DefaultCatalog(),
		Rules:                  allocation.DefaultRules(),
		DefaultPolicy:          allocation.InterestFirst,
		EarlyRepaymentDiscount: constants.DefaultEarlyRepaymentDiscount,
		DailyPenaltyRate:       constants.DefaultDailyPenaltyRate,
	}
}

// Service manages the loan book. Operations that read and then rewrite a
// loan hold mu for the whole sequence.
type Service struct {
	mu        sync.Mutex
	repo      Repository
	apps      Applications
	opts      Options
	schedules *loans.ScheduleGenerator
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewService creates a new lending service. apps may be nil when loans are
// only originated directly.
func NewService(repo Repository, apps Applications, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Products) == 0 {
		opts.Products = loans.DefaultCatalog()
	}
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = allocation.InterestFirst
	}
	return &Service{
		repo:      repo,
		apps:      apps,
		opts:      opts,
		schedules: loans.NewScheduleGenerator(logger),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Options returns the active lending rules.
func (s *Service) Options() Options {
	return s.opts
}

// OriginateRequest creates a loan without an application.
type OriginateRequest struct {
	BorrowerID    string          `json:"borrowerId"`
	Product       string          `json:"product"`
	Principal     float64         `json:"principal"`
	TermMonths    int             `json:"termMonths"`
	Frequency     loans.Frequency `json:"frequency"`
	DisbursedAt   time.Time       `json:"disbursedAt"`
	ApplicationID string          `json:"-"`
}

// Originate prices the loan, builds its schedule and stores it as active.
// The first installment is due one period after disbursement. Amount and
// term must fall within the product limits.
func (s *Service) Originate(req OriginateRequest) (domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originate(req)
}

func (s *Service) originate(req OriginateRequest) (domain.Loan, error) {
	if _, err := s.repo.Borrower(req.BorrowerID); err != nil {
		return domain.Loan{}, fmt.Errorf("borrower %q: %w", req.BorrowerID, err)
	}
	product, ok := s.opts.Products.Find(req.Product)
	if !ok {
		return domain.Loan{}, fmt.Errorf("%w: %q", ErrUnknownProduct, req.Product)
	}
	if req.Frequency == "" {
		req.Frequency = loans.Monthly
	}
	if req.DisbursedAt.IsZero() {
		req.DisbursedAt = s.now()
	}

	in := product.Input(req.Principal, req.TermMonths, req.Frequency)
	quote, err := loans.CalculateInstallment(in)
	if err != nil {
		return domain.Loan{}, err
	}
	if err := product.CheckAmount(req.Principal); err != nil {
		return domain.Loan{}, fmt.Errorf("%w: %w", ErrProductLimits, err)
	}
	if err := product.CheckTerm(req.TermMonths); err != nil {
		return domain.Loan{}, fmt.Errorf("%w: %w", ErrProductLimits, err)
	}
	schedule, err := s.schedules.Generate(in, loans.DueDate(req.DisbursedAt, req.Frequency, 2))
	if err != nil {
		return domain.Loan{}, err
	}

	firstDue := schedule[0].DueDate
	loan := domain.Loan{
		ID:            s.newID(),
		BorrowerID:    req.BorrowerID,
		ApplicationID: req.ApplicationID,
		Product:       product.Name,
		Principal:     mathutil.Round(req.Principal),
		TermMonths:    req.TermMonths,
		AnnualRate:    product.AnnualRate,
		InterestType:  product.InterestType,
		Frequency:     req.Frequency,
		Installment:   mathutil.Round(quote.Installment),
		Status:        domain.LoanActive,
		DisbursedAt:   req.DisbursedAt,
		NextDueDate:   &firstDue,
		Outstanding:   mathutil.Round(req.Principal),
		Schedule:      schedule,
	}
	if err := s.repo.SaveLoan(loan); err != nil {
		return domain.Loan{}, err
	}
	s.logger.Info(fmt.Sprintf("disbursed %.2f on %s to %s", loan.Principal, loan.Product, loan.BorrowerID),
		zap.String("op", "lending.Originate"),
		zap.String("loan", loan.ID),
		zap.Float64("installment", loan.Installment),
	)
	return loan, nil
}

// Disburse turns an approved application into an active loan and records
// the disbursement on the application timeline.
func (s *Service) Disburse(applicationID, actor string, disbursedAt time.Time) (domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apps == nil {
		return domain.Loan{}, errors.New("application workflow is not configured")
	}
	app, err := s.apps.Get(applicationID)
	if err != nil {
		return domain.Loan{}, err
	}
	if app.Status != domain.StatusApproved {
		return domain.Loan{}, fmt.Errorf("%w: application %s is %s", ErrNotApproved, applicationID, app.Status)
	}
	if app.LoanID != "" {
		return domain.Loan{}, fmt.Errorf("%w: %s as loan %s", ErrDisbursed, applicationID, app.LoanID)
	}

	loan, err := s.originate(OriginateRequest{
		BorrowerID:    app.BorrowerID,
		Product:       app.Product,
		Principal:     app.Principal,
		TermMonths:    app.TermMonths,
		Frequency:     app.Frequency,
		DisbursedAt:   disbursedAt,
		ApplicationID: app.ID,
	})
	if err != nil {
		return domain.Loan{}, err
	}
	if _, err := s.apps.MarkDisbursed(app.ID, loan.ID, actor); err != nil {
		return domain.Loan{}, fmt.Errorf("loan %s created but application not updated: %w", loan.ID, err)
	}
	return loan, nil
}

// Get returns one loan.
func (s *Service) Get(id string) (domain.Loan, error) {
	return s.repo.Loan(id)
}

// List returns loans, optionally filtered by status and borrower.
func (s *Service) List(status domain.LoanStatus, borrowerID string) ([]domain.Loan, error) {
	all, err := s.repo.Loans()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Loan, 0, len(all))
	for _, l := range all {
		if status != "" && l.Status != status {
			continue
		}
		if borrowerID != "" && l.BorrowerID != borrowerID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Payments returns the repayments recorded against a loan, or all loans
// when loanID is empty.
func (s *Service) Payments(loanID string) ([]domain.Payment, error) {
	return s.repo.Payments(loanID)
}

// RepaymentRequest records money received from a borrower.
type RepaymentRequest struct {
	LoanID    string               `json:"loanId"`
	Amount    float64              `json:"amount"`
	Method    domain.PaymentMethod `json:"method"`
	PaidAt    time.Time            `json:"paidAt"`
	Policy    allocation.Policy    `json:"policy,omitempty"`
	Reference string               `json:"reference,omitempty"`
}

// RecordRepayment allocates a repayment against outstanding penalties,
// interest and principal, updates the loan and stores the payment pending
// reconciliation. A loan whose principal reaches zero is closed.
func (s *Service) RecordRepayment(req RepaymentRequest) (domain.Payment, domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, err := s.repo.Loan(req.LoanID)
	if err != nil {
		return domain.Payment{}, domain.Loan{}, err
	}
	if loan.Status == domain.LoanClosed {
		return domain.Payment{}, domain.Loan{}, fmt.Errorf("%w: %s", ErrLoanClosed, loan.ID)
	}
	switch req.Method {
	case domain.MethodCash, domain.MethodMobileMoney, domain.MethodBankTransfer:
	case "":
		req.Method = domain.MethodCash
	default:
		return domain.Payment{}, domain.Loan{}, fmt.Errorf("%w: unknown method %q", ErrInvalidRepayment, req.Method)
	}
	if req.Policy == "" {
		req.Policy = s.opts.DefaultPolicy
	}
	if req.PaidAt.IsZero() {
		req.PaidAt = s.now()
	}

	owed := Owed(loan, req.PaidAt)
	split, err := allocation.Allocate(req.Amount, req.Policy, s.opts.Rules, owed)
	if err != nil {
		return domain.Payment{}, domain.Loan{}, fmt.Errorf("%w: %w", ErrInvalidRepayment, err)
	}
	if split.Principal > loan.Outstanding {
		split.Overpayment = mathutil.Round(split.Overpayment + split.Principal - loan.Outstanding)
		split.Principal = loan.Outstanding
	}

	loan.Penalty = mathutil.Round(math.Max(0, loan.Penalty-split.Fees))
	loan.FeesPaid = mathutil.Round(loan.FeesPaid + split.Fees)
	loan.InterestPaid = mathutil.Round(loan.InterestPaid + split.Interest)
	loan.PrincipalPaid = mathutil.Round(loan.PrincipalPaid + split.Principal)
	loan.Outstanding = mathutil.Round(loan.Outstanding - split.Principal)
	s.advance(&loan, req.PaidAt)

	id := s.newID()
	payment := domain.Payment{
		ID:             id,
		LoanID:         loan.ID,
		Amount:         split.Amount,
		PaidAt:         req.PaidAt,
		Method:         req.Method,
		Reference:      strings.TrimSpace(req.Reference),
		Reconciliation: domain.ReconciliationPending,
		Allocation:     split,
	}
	if payment.Reference == "" {
		payment.Reference = "RCP-" + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:10])
	}

	if err := s.repo.SaveLoan(loan); err != nil {
		return domain.Payment{}, domain.Loan{}, err
	}
	if err := s.repo.SavePayment(payment); err != nil {
		return domain.Payment{}, domain.Loan{}, err
	}

	s.logger.Info(fmt.Sprintf("recorded %.2f against loan %s (%s)", split.Amount, loan.ID, split.Policy),
		zap.String("op", "lending.RecordRepayment"),
		zap.Float64("principal", split.Principal),
		zap.Float64("interest", split.Interest),
		zap.Float64("fees", split.Fees),
		zap.Float64("outstanding", loan.Outstanding),
	)
	return payment, loan, nil
}

// Owed returns the penalties, interest and principal outstanding on a loan
// as of asOf. Interest is the scheduled interest of installments due by asOf
// less what has been paid; when that is settled, the next installment's
// interest is due instead.
func Owed(loan domain.Loan, asOf time.Time) allocation.Outstanding {
	accrued := 0.0
	for _, row := range loan.Schedule {
		if row.DueDate.After(asOf) {
			if accrued-loan.InterestPaid < constants.CurrencyTolerance {
				accrued += row.Interest
			}
			break
		}
		accrued += row.Interest
	}
	return allocation.Outstanding{
		Fees:      loan.Penalty,
		Interest:  mathutil.Round(math.Max(0, accrued-loan.InterestPaid)),
		Principal: loan.Outstanding,
	}
}

// NextUnpaid returns the first installment whose principal has not been
// fully covered.
func NextUnpaid(loan domain.Loan) (loans.Installment, bool) {
	for _, row := range loan.Schedule {
		if row.Balance < loan.Outstanding-constants.CurrencyTolerance {
			return row, true
		}
	}
	return loans.Installment{}, false
}

func (s *Service) advance(loan *domain.Loan, asOf time.Time) {
	if mathutil.IsZero(loan.Outstanding) {
		loan.Outstanding = 0
		loan.Status = domain.LoanClosed
		loan.NextDueDate = nil
		loan.OverdueDays = 0
		loan.Penalty = 0
		return
	}
	row, ok := NextUnpaid(*loan)
	if !ok {
		loan.NextDueDate = nil
		return
	}
	due := row.DueDate
	loan.NextDueDate = &due
	if due.Before(datetime.Truncate(asOf)) {
		loan.OverdueDays = datetime.DaysBetween(due, asOf)
	} else {
		loan.OverdueDays = 0
	}
}

// RefreshArrears recomputes overdue days and penalties for every active loan
// and returns the loans in arrears, most overdue first. Penalties accrue
// daily on the oldest unpaid installment, net of penalties paid since it fell
// due.
func (s *Service) RefreshArrears(asOf time.Time) ([]domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.repo.Loans()
	if err != nil {
		return nil, err
	}
	var overdue []domain.Loan
	for _, loan := range all {
		if loan.Status != domain.LoanActive {
			continue
		}
		row, ok := NextUnpaid(loan)
		if !ok {
			continue
		}
		loan.OverdueDays = 0
		loan.Penalty = 0
		if row.DueDate.Before(datetime.Truncate(asOf)) {
			loan.OverdueDays = datetime.DaysBetween(row.DueDate, asOf)
			charged := loans.CalculatePenalty(row.Payment, loan.OverdueDays, s.opts.DailyPenaltyRate)
			paid, err := s.feesPaidSince(loan.ID, row.DueDate)
			if err != nil {
				return nil, err
			}
			loan.Penalty = mathutil.Round(math.Max(0, charged-paid))
		}
		if err := s.repo.SaveLoan(loan); err != nil {
			return nil, err
		}
		if loan.OverdueDays > 0 {
			overdue = append(overdue, loan)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool { return overdue[i].OverdueDays > overdue[j].OverdueDays })

	s.logger.Debug(fmt.Sprintf("%d of %d loans in arrears", len(overdue), len(all)),
		zap.String("op", "lending.RefreshArrears"),
		zap.String("asOf", asOf.Format(constants.DateLayout)),
	)
	return overdue, nil
}

func (s *Service) feesPaidSince(loanID string, since time.Time) (float64, error) {
	payments, err := s.repo.Payments(loanID)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, p := range payments {
		if !p.PaidAt.Before(since) {
			total += p.Allocation.Fees
		}
	}
	return total, nil
}

// PayoffQuote is the amount needed to close a loan early.
type PayoffQuote struct {
	LoanID string `json:"loanId"`
	loans.Payoff
	Penalty   float64   `json:"penalty"`
	AmountDue float64   `json:"amountDue"`
	AsOf      time.Time `json:"asOf"`
}

// Payoff quotes early repayment of a loan as of asOf. Outstanding penalties
// are added to the discounted principal.
func (s *Service) Payoff(loanID string, asOf time.Time) (PayoffQuote, error) {
	loan, err := s.repo.Loan(loanID)
	if err != nil {
		return PayoffQuote{}, err
	}
	if loan.Status == domain.LoanClosed {
		return PayoffQuote{}, fmt.Errorf("%w: %s", ErrLoanClosed, loan.ID)
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	payoff, err := loans.CalculateEarlyRepayment(loans.EarlyRepaymentInput{
		RemainingPrincipal: loan.Outstanding,
		TermMonths:         loan.TermMonths,
		StartDate:          loan.DisbursedAt,
		DiscountRate:       s.opts.EarlyRepaymentDiscount,
	}, asOf)
	if err != nil {
		return PayoffQuote{}, err
	}
	return PayoffQuote{
		LoanID:    loan.ID,
		Payoff:    payoff,
		Penalty:   loan.Penalty,
		AmountDue: mathutil.Round(payoff.TotalPayoff + loan.Penalty),
		AsOf:      asOf,
	}, nil
}
