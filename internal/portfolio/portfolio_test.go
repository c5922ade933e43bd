package portfolio

import (
	"testing"
	"time"

	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book() []domain.Loan {
	return []domain.Loan{
		{ID: "L1", Status: domain.LoanActive, Principal: 10000, Outstanding: 6000},
		{ID: "L2", Status: domain.LoanActive, Principal: 5000, Outstanding: 3000, OverdueDays: 12},
		{ID: "L3", Status: domain.LoanActive, Principal: 2000, Outstanding: 1000, OverdueDays: 45},
		{ID: "L4", Status: domain.LoanClosed, Principal: 8000, OverdueDays: 120},
	}
}

func TestPAR(t *testing.T) {
	tests := []struct {
		name      string
		loans     []domain.Loan
		threshold int
		want      float64
	}{
		{"empty book", nil, 30, 0},
		{"par30", book(), 30, 10},
		{"par7", book(), 7, 40},
		{"par60", book(), 60, 0},
		{"threshold is exclusive", book(), 45, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PAR(tt.loans, tt.threshold))
		})
	}
}

func TestAging(t *testing.T) {
	buckets := Aging(book())
	require.Len(t, buckets, 5)
	counts := map[string]int{}
	for _, b := range buckets {
		counts[b.Label] = b.Loans
	}
	assert.Equal(t, map[string]int{"current": 1, "1-30": 1, "31-60": 1, "61-90": 0, "90+": 0}, counts)
	assert.Equal(t, 3000.0, buckets[1].Outstanding)
}

func TestStats(t *testing.T) {
	store := repository.NewStore()
	require.NoError(t, store.SaveBorrower(domain.Borrower{ID: "B1"}))
	require.NoError(t, store.SaveBorrower(domain.Borrower{ID: "B2"}))
	for _, l := range book() {
		require.NoError(t, store.SaveLoan(l))
	}
	require.NoError(t, store.SavePayment(domain.Payment{ID: "P1", LoanID: "L1", Amount: 4000}))
	require.NoError(t, store.SavePayment(domain.Payment{ID: "P2", LoanID: "L4", Amount: 8800}))
	for i, s := range []domain.ApplicationStatus{domain.StatusDraft, domain.StatusSubmitted, domain.StatusPendingDocs, domain.StatusApproved} {
		require.NoError(t, store.SaveApplication(domain.Application{ID: string(rune('A' + i)), Status: s}))
	}

	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	stats, err := NewReporter(store, 0, nil).Stats(asOf)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalBorrowers)
	assert.Equal(t, 3, stats.ActiveLoans)
	assert.Equal(t, 1, stats.ClosedLoans)
	assert.Equal(t, 10000.0, stats.PortfolioOutstanding)
	assert.Equal(t, 25000.0, stats.TotalDisbursed)
	assert.Equal(t, 12800.0, stats.TotalCollected)
	assert.Equal(t, 2, stats.OverdueLoans)
	assert.Equal(t, 30, stats.PARThresholdDays)
	assert.Equal(t, 10.0, stats.PAR)
	assert.Equal(t, 2, stats.PendingApplications)
	assert.Equal(t, asOf, stats.AsOf)
}
