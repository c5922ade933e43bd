package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/internal/repository"
	"github.com/iwvelando/microloan/pkg/datetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPayments(t *testing.T) *repository.Store {
	t.Helper()
	store := repository.NewStore()
	payments := []domain.Payment{
		{ID: "P1", LoanID: "L1", Amount: 2180, PaidAt: datetime.MustParseDate("2025-02-15"), Reference: "RCP-001", Reconciliation: domain.ReconciliationPending},
		{ID: "P2", LoanID: "L2", Amount: 1500, PaidAt: datetime.MustParseDate("2025-02-16"), Reference: "RCP-002", Reconciliation: domain.ReconciliationPending},
		{ID: "P3", LoanID: "L3", Amount: 900, PaidAt: datetime.MustParseDate("2025-02-17"), Reconciliation: domain.ReconciliationPending},
		{ID: "P4", LoanID: "L4", Amount: 300, PaidAt: datetime.MustParseDate("2025-02-18"), Reference: "RCP-004", Reconciliation: domain.ReconciliationPending},
		{ID: "P5", LoanID: "L5", Amount: 100, PaidAt: datetime.MustParseDate("2025-04-01"), Reference: "RCP-005", Reconciliation: domain.ReconciliationPending},
	}
	for _, p := range payments {
		require.NoError(t, store.SavePayment(p))
	}
	return store
}

func TestReconcile(t *testing.T) {
	store := seedPayments(t)
	lines := []StatementLine{
		{ID: "S1", Date: datetime.MustParseDate("2025-02-15"), Amount: 2180, Reference: "rcp-001"},
		{ID: "S2", Date: datetime.MustParseDate("2025-02-17"), Amount: 1450, Description: "M-PESA RCP-002 Amina"},
		{ID: "S3", Date: datetime.MustParseDate("2025-02-17"), Amount: 900, Description: "cash deposit"},
		{ID: "S4", Date: datetime.MustParseDate("2025-02-20"), Amount: 5000, Description: "unknown transfer"},
		{ID: "S5", Date: datetime.MustParseDate("2025-05-01"), Amount: 100, Reference: "RCP-005"},
	}
	period := Period{Start: datetime.MustParseDate("2025-02-01"), End: datetime.MustParseDate("2025-02-28")}

	report, err := NewReconciler(store, nil).Reconcile(context.Background(), lines, period)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Summary.PaymentsProcessed)
	assert.Equal(t, 4, report.Summary.LinesProcessed)
	assert.Equal(t, 3, report.Summary.Matched)
	assert.Equal(t, 1, report.Summary.Discrepancies)
	assert.Equal(t, 2, report.Summary.Unmatched)
	assert.Equal(t, 50.0, report.Summary.TotalDiscrepancyValue)
	assert.Equal(t, 3080.0, report.Summary.ReconciledAmount)
	assert.Equal(t, "2025-02-01", report.Summary.Start)

	passes := make(map[string]Pass)
	for _, m := range report.Matched {
		passes[m.PaymentID] = m.Pass
	}
	assert.Equal(t, ByReference, passes["P1"])
	assert.Equal(t, ByReference, passes["P2"])
	assert.Equal(t, ByAmountDate, passes["P3"])

	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "P2", report.Discrepancies[0].PaymentID)
	assert.Equal(t, -50.0, report.Discrepancies[0].Difference)

	require.Len(t, report.UnmatchedPayments, 1)
	assert.Equal(t, "P4", report.UnmatchedPayments[0].ID)
	require.Len(t, report.UnmatchedStatement, 1)
	assert.Equal(t, "S4", report.UnmatchedStatement[0].ID)

	want := map[string]domain.ReconciliationStatus{
		"P1": domain.ReconciliationReconciled,
		"P2": domain.ReconciliationDiscrepancy,
		"P3": domain.ReconciliationReconciled,
		"P4": domain.ReconciliationUnmatched,
		"P5": domain.ReconciliationPending,
	}
	for id, status := range want {
		p, err := store.Payment(id)
		require.NoError(t, err)
		assert.Equal(t, status, p.Reconciliation, id)
	}
}

func TestReconcileAmbiguousGroupsStayUnmatched(t *testing.T) {
	store := repository.NewStore()
	day := datetime.MustParseDate("2025-03-03")
	require.NoError(t, store.SavePayment(domain.Payment{ID: "A", Amount: 500, PaidAt: day}))
	require.NoError(t, store.SavePayment(domain.Payment{ID: "B", Amount: 500, PaidAt: day}))

	lines := []StatementLine{{ID: "S1", Date: day, Amount: 500}}
	report, err := NewReconciler(store, nil).Reconcile(context.Background(), lines, Period{})
	require.NoError(t, err)
	assert.Empty(t, report.Matched)
	assert.Len(t, report.UnmatchedPayments, 2)
	assert.Len(t, report.UnmatchedStatement, 1)

	lines = append(lines, StatementLine{ID: "S2", Date: day, Amount: 500})
	report, err = NewReconciler(store, nil).Reconcile(context.Background(), lines, Period{})
	require.NoError(t, err)
	assert.Len(t, report.Matched, 2)
	assert.Empty(t, report.UnmatchedPayments)
}

func TestReconcileStatementLineIDs(t *testing.T) {
	day := datetime.MustParseDate("2025-03-03")

	tests := []struct {
		name          string
		lines         []StatementLine
		wantErr       error
		wantMatched   int
		wantUnmatched []string
	}{
		{
			name: "Lines without IDs are reported individually",
			lines: []StatementLine{
				{Date: day, Amount: 100, Reference: "RCP-100"},
				{Date: day, Amount: 999},
				{Date: day, Amount: 555},
			},
			wantMatched:   1,
			wantUnmatched: []string{"line-2", "line-3"},
		},
		{
			name: "Generated IDs avoid explicit ones",
			lines: []StatementLine{
				{ID: "line-2", Date: day, Amount: 100, Reference: "RCP-100"},
				{Date: day, Amount: 999},
				{Date: day, Amount: 555},
			},
			wantMatched:   1,
			wantUnmatched: []string{"line-2-2", "line-3"},
		},
		{
			name: "Duplicate IDs are rejected",
			lines: []StatementLine{
				{ID: "S1", Date: day, Amount: 100},
				{ID: "S1", Date: day, Amount: 999},
			},
			wantErr: ErrDuplicateLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewStore()
			require.NoError(t, store.SavePayment(domain.Payment{ID: "P1", Amount: 100, PaidAt: day, Reference: "RCP-100"}))

			report, err := NewReconciler(store, nil).Reconcile(context.Background(), tt.lines, Period{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.lines), report.Summary.LinesProcessed)
			assert.Equal(t, tt.wantMatched, report.Summary.Matched)

			var unmatched []string
			for _, l := range report.UnmatchedStatement {
				unmatched = append(unmatched, l.ID)
			}
			assert.ElementsMatch(t, tt.wantUnmatched, unmatched)
			assert.Empty(t, tt.lines[1].ID, "input lines are not modified")
		})
	}
}

func TestParseStatementCSV(t *testing.T) {
	data := `id,date,amount,reference,description
S1,2025-02-15,2180.00,RCP-001,loan repayment
S2,2025-02-16,-40.00,,bank charges
,2025-02-17,900,,"cash, branch 2"
`
	lines, err := ParseStatementCSV(strings.NewReader(data), "bank-a")
	require.NoError(t, err)
	require.Len(t, lines, 2, "debits are skipped")
	assert.Equal(t, "RCP-001", lines[0].Reference)
	assert.Equal(t, "bank-a", lines[0].Source)
	assert.Equal(t, "bank-a-4", lines[1].ID)
	assert.Equal(t, "cash, branch 2", lines[1].Description)

	tests := []struct {
		name string
		data string
	}{
		{"bad header", "date,amount\n2025-01-01,5\n"},
		{"bad date", "id,date,amount\nS1,15/02/2025,5\n"},
		{"bad amount", "id,date,amount\nS1,2025-02-15,five\n"},
		{"short row", "id,date,amount\nS1,2025-02-15\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatementCSV(strings.NewReader(tt.data), "x")
			assert.Error(t, err)
		})
	}

	empty, err := ParseStatementCSV(strings.NewReader(""), "x")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
