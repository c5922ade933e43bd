// Package reconcile matches recorded repayments against bank and ledger
// statements.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/mathutil"
	"go.uber.org/zap"
)

// ErrDuplicateLine is returned when two statement lines share an ID.
var ErrDuplicateLine = errors.New("duplicate statement line id")

// Repository is the payment storage reconciliation reads and updates.
type Repository interface {
	Payments(loanID string) ([]domain.Payment, error)
	SavePayment(p domain.Payment) error
}

// Pass names how a payment and a statement line were paired.
type Pass string

const (
	ByReference  Pass = "reference"
	ByAmountDate Pass = "amount_date"
)

// Match pairs a payment with a statement line.
type Match struct {
	PaymentID       string  `json:"paymentId"`
	LoanID          string  `json:"loanId"`
	LineID          string  `json:"lineId"`
	Pass            Pass    `json:"pass"`
	PaymentAmount   float64 `json:"paymentAmount"`
	StatementAmount float64 `json:"statementAmount"`
	Difference      float64 `json:"difference"`
}

// Summary gives the totals of a run.
type Summary struct {
	Start                 string  `json:"start,omitempty"`
	End                   string  `json:"end,omitempty"`
	PaymentsProcessed     int     `json:"paymentsProcessed"`
	LinesProcessed        int     `json:"linesProcessed"`
	Matched               int     `json:"matched"`
	Discrepancies         int     `json:"discrepancies"`
	Unmatched             int     `json:"unmatched"`
	TotalDiscrepancyValue float64 `json:"totalDiscrepancyValue"`
	ReconciledAmount      float64 `json:"reconciledAmount"`
}

// Report is the result of a reconciliation run. Matched includes the
// discrepancies, which are also listed on their own.
type Report struct {
	Summary            Summary          `json:"summary"`
	Matched            []Match          `json:"matched"`
	Discrepancies      []Match          `json:"discrepancies"`
	UnmatchedPayments  []domain.Payment `json:"unmatchedPayments"`
	UnmatchedStatement []StatementLine  `json:"unmatchedStatement"`
}

// Period bounds a run by calendar date, inclusive. Zero bounds are open.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && !t.Before(p.End.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// Reconciler runs reconciliations.
type Reconciler struct {
	repo   Repository
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(repo Repository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{repo: repo, logger: logger}
}

// Reconcile matches the recorded payments in period against lines. Pass 1
// pairs by reference; pass 2 pairs the rest by amount and date. Pairs whose
// amounts differ are discrepancies. Every payment in period is updated with
// its reconciliation status.
func (r *Reconciler) Reconcile(ctx context.Context, lines []StatementLine, period Period) (*Report, error) {
	lines, err := identify(lines)
	if err != nil {
		return nil, err
	}
	all, err := r.repo.Payments("")
	if err != nil {
		return nil, fmt.Errorf("could not get payments: %w", err)
	}

	var payments []domain.Payment
	for _, p := range all {
		if period.contains(p.PaidAt) {
			payments = append(payments, p)
		}
	}
	var statement []StatementLine
	for _, l := range lines {
		if period.contains(l.Date) {
			statement = append(statement, l)
		}
	}
	sort.SliceStable(statement, func(i, j int) bool {
		if !statement[i].Date.Equal(statement[j].Date) {
			return statement[i].Date.Before(statement[j].Date)
		}
		return statement[i].ID < statement[j].ID
	})

	report := &Report{
		Summary: Summary{
			PaymentsProcessed: len(payments),
			LinesProcessed:    len(statement),
		},
		Matched:            make([]Match, 0),
		Discrepancies:      make([]Match, 0),
		UnmatchedPayments:  make([]domain.Payment, 0),
		UnmatchedStatement: make([]StatementLine, 0),
	}
	if !period.Start.IsZero() {
		report.Summary.Start = period.Start.Format(constants.DateLayout)
	}
	if !period.End.IsZero() {
		report.Summary.End = period.End.Format(constants.DateLayout)
	}

	matchedPayment := make(map[string]bool)
	matchedLine := make(map[string]bool)
	status := make(map[string]domain.ReconciliationStatus)

	record := func(p domain.Payment, l StatementLine, pass Pass) {
		m := Match{
			PaymentID:       p.ID,
			LoanID:          p.LoanID,
			LineID:          l.ID,
			Pass:            pass,
			PaymentAmount:   p.Amount,
			StatementAmount: l.Amount,
			Difference:      mathutil.Round(l.Amount - p.Amount),
		}
		matchedPayment[p.ID] = true
		matchedLine[l.ID] = true
		report.Matched = append(report.Matched, m)
		if math.Abs(m.Difference) > constants.CurrencyTolerance/2 {
			report.Discrepancies = append(report.Discrepancies, m)
			report.Summary.TotalDiscrepancyValue += math.Abs(m.Difference)
			status[p.ID] = domain.ReconciliationDiscrepancy
			return
		}
		report.Summary.ReconciledAmount += p.Amount
		status[p.ID] = domain.ReconciliationReconciled
	}

	// Pass 1: reference.
	for _, l := range statement {
		for _, p := range payments {
			if matchedPayment[p.ID] || matchedLine[l.ID] || p.Reference == "" {
				continue
			}
			if strings.EqualFold(l.Reference, p.Reference) || containsFold(l.Description, p.Reference) {
				record(p, l, ByReference)
			}
		}
	}

	// Pass 2: amount and date, only where the group sizes agree.
	paymentGroups := make(map[string][]domain.Payment)
	var keys []string
	for _, p := range payments {
		if matchedPayment[p.ID] {
			continue
		}
		key := groupKey(p.PaidAt, p.Amount)
		if _, seen := paymentGroups[key]; !seen {
			keys = append(keys, key)
		}
		paymentGroups[key] = append(paymentGroups[key], p)
	}
	lineGroups := make(map[string][]StatementLine)
	for _, l := range statement {
		if !matchedLine[l.ID] {
			key := groupKey(l.Date, l.Amount)
			lineGroups[key] = append(lineGroups[key], l)
		}
	}
	for _, key := range keys {
		ps, ls := paymentGroups[key], lineGroups[key]
		if len(ls) == 0 || len(ps) != len(ls) {
			continue
		}
		for i := range ps {
			record(ps[i], ls[i], ByAmountDate)
		}
	}

	for _, p := range payments {
		if !matchedPayment[p.ID] {
			report.UnmatchedPayments = append(report.UnmatchedPayments, p)
			status[p.ID] = domain.ReconciliationUnmatched
		}
	}
	for _, l := range statement {
		if !matchedLine[l.ID] {
			report.UnmatchedStatement = append(report.UnmatchedStatement, l)
		}
	}

	for _, p := range payments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.Reconciliation == status[p.ID] {
			continue
		}
		p.Reconciliation = status[p.ID]
		if err := r.repo.SavePayment(p); err != nil {
			return nil, fmt.Errorf("could not update payment %s: %w", p.ID, err)
		}
	}

	report.Summary.Matched = len(report.Matched)
	report.Summary.Discrepancies = len(report.Discrepancies)
	report.Summary.Unmatched = len(report.UnmatchedPayments) + len(report.UnmatchedStatement)
	report.Summary.TotalDiscrepancyValue = mathutil.Round(report.Summary.TotalDiscrepancyValue)
	report.Summary.ReconciledAmount = mathutil.Round(report.Summary.ReconciledAmount)

	r.logger.Info(fmt.Sprintf("reconciled %d of %d payments", report.Summary.Matched, len(payments)),
		zap.String("op", "reconcile.Reconcile"),
		zap.Int("discrepancies", report.Summary.Discrepancies),
		zap.Int("unmatched", report.Summary.Unmatched),
	)
	return report, nil
}

// identify returns a copy of lines in which every line has a unique ID.
// Lines without one are numbered by position as line-1, line-2 and so on.
func identify(lines []StatementLine) ([]StatementLine, error) {
	out := make([]StatementLine, len(lines))
	copy(out, lines)
	taken := make(map[string]bool, len(out))
	for i := range out {
		out[i].ID = strings.TrimSpace(out[i].ID)
		if out[i].ID == "" {
			continue
		}
		if taken[out[i].ID] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLine, out[i].ID)
		}
		taken[out[i].ID] = true
	}
	for i := range out {
		if out[i].ID != "" {
			continue
		}
		id := fmt.Sprintf("line-%d", i+1)
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("line-%d-%d", i+1, n)
		}
		taken[id] = true
		out[i].ID = id
	}
	return out, nil
}

func groupKey(t time.Time, amount float64) string {
	return fmt.Sprintf("%s-%.2f", t.Format(constants.DateLayout), amount)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
