// Package portfolio computes the administrative dashboard figures for the
// loan book.
package portfolio

import (
	"time"

	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/mathutil"
	"go.uber.org/zap"
)

// Repository is the read-only view of the book the reports use.
type Repository interface {
	Borrowers() ([]domain.Borrower, error)
	Loans() ([]domain.Loan, error)
	Payments(loanID string) ([]domain.Payment, error)
	Applications() ([]domain.Application, error)
}

// DashboardStats are the headline figures of the loan book.
type DashboardStats struct {
	TotalBorrowers       int           `json:"totalBorrowers"`
	ActiveLoans          int           `json:"activeLoans"`
	ClosedLoans          int           `json:"closedLoans"`
	PortfolioOutstanding float64       `json:"portfolioOutstanding"`
	TotalDisbursed       float64       `json:"totalDisbursed"`
	TotalCollected       float64       `json:"totalCollected"`
	OverdueLoans         int           `json:"overdueLoans"`
	PAR                  float64       `json:"par"`
	PARThresholdDays     int           `json:"parThresholdDays"`
	PendingApplications  int           `json:"pendingApplications"`
	Aging                []AgingBucket `json:"aging"`
	AsOf                 time.Time     `json:"asOf"`
}

// AgingBucket groups active loans by days overdue, inclusive bounds. A
// negative MaxDays is open ended.
type AgingBucket struct {
	Label       string  `json:"label"`
	MinDays     int     `json:"minDays"`
	MaxDays     int     `json:"maxDays"`
	Loans       int     `json:"loans"`
	Outstanding float64 `json:"outstanding"`
}

// Buckets returns the empty standard aging buckets.
func Buckets() []AgingBucket {
	return []AgingBucket{
		{Label: "current", MinDays: 0, MaxDays: 0},
		{Label: "1-30", MinDays: 1, MaxDays: 30},
		{Label: "31-60", MinDays: 31, MaxDays: 60},
		{Label: "61-90", MinDays: 61, MaxDays: 90},
		{Label: "90+", MinDays: 91, MaxDays: -1},
	}
}

// Aging distributes active loans into the standard buckets.
func Aging(loans []domain.Loan) []AgingBucket {
	buckets := Buckets()
	for _, l := range loans {
		if l.Status != domain.LoanActive {
			continue
		}
		for i := range buckets {
			b := &buckets[i]
			if l.OverdueDays >= b.MinDays && (b.MaxDays < 0 || l.OverdueDays <= b.MaxDays) {
				b.Loans++
				b.Outstanding = mathutil.Round(b.Outstanding + l.Outstanding)
				break
			}
		}
	}
	return buckets
}

// PAR is the portfolio at risk: the share of outstanding principal on active
// loans more than thresholdDays overdue, as a percentage. An empty book has
// no risk.
func PAR(loans []domain.Loan, thresholdDays int) float64 {
	var total, atRisk float64
	for _, l := range loans {
		if l.Status != domain.LoanActive {
			continue
		}
		total += l.Outstanding
		if l.OverdueDays > thresholdDays {
			atRisk += l.Outstanding
		}
	}
	return mathutil.Round(mathutil.Ratio(atRisk, total))
}

// Reporter builds dashboard statistics.
type Reporter struct {
	repo         Repository
	parThreshold int
	logger       *zap.Logger
}

// NewReporter creates a Reporter. A non-positive threshold uses the default.
func NewReporter(repo Repository, parThresholdDays int, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parThresholdDays <= 0 {
		parThresholdDays = constants.DefaultPARThresholdDays
	}
	return &Reporter{repo: repo, parThreshold: parThresholdDays, logger: logger}
}

// Stats computes the dashboard figures. Overdue days are read from the loans
// as last refreshed.
func (r *Reporter) Stats(asOf time.Time) (DashboardStats, error) {
	borrowers, err := r.repo.Borrowers()
	if err != nil {
		return DashboardStats{}, err
	}
	loans, err := r.repo.Loans()
	if err != nil {
		return DashboardStats{}, err
	}
	payments, err := r.repo.Payments("")
	if err != nil {
		return DashboardStats{}, err
	}
	apps, err := r.repo.Applications()
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{
		TotalBorrowers:   len(borrowers),
		PARThresholdDays: r.parThreshold,
		AsOf:             asOf,
	}
	for _, l := range loans {
		stats.TotalDisbursed += l.Principal
		switch l.Status {
		case domain.LoanActive:
			stats.ActiveLoans++
			stats.PortfolioOutstanding += l.Outstanding
			if l.OverdueDays > 0 {
				stats.OverdueLoans++
			}
		case domain.LoanClosed:
			stats.ClosedLoans++
		}
	}
	for _, p := range payments {
		stats.TotalCollected += p.Amount
	}
	for _, a := range apps {
		if a.Status != domain.StatusDraft && !a.Status.Terminal() {
			stats.PendingApplications++
		}
	}
	stats.TotalDisbursed = mathutil.Round(stats.TotalDisbursed)
	stats.TotalCollected = mathutil.Round(stats.TotalCollected)
	stats.PortfolioOutstanding = mathutil.Round(stats.PortfolioOutstanding)
	stats.PAR = PAR(loans, r.parThreshold)
	stats.Aging = Aging(loans)

	r.logger.Debug("computed dashboard statistics",
		zap.String("op", "portfolio.Stats"),
		zap.Int("activeLoans", stats.ActiveLoans),
		zap.Float64("par", stats.PAR),
	)
	return stats, nil
}
