package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/microloan/internal/application"
	"github.com/iwvelando/microloan/internal/client"
	"github.com/iwvelando/microloan/internal/config"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/internal/lending"
	"github.com/iwvelando/microloan/internal/server"
	"github.com/iwvelando/microloan/internal/wizard"
	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/datetime"
	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = datetime.MustParseDate("2025-01-15")

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	svc, err := server.NewServices(config.Default(), nil, nil)
	require.NoError(t, err)
	clock := func() time.Time { return today }
	svc.Now = clock
	svc.Applications.SetClock(clock)
	svc.Lending.SetClock(clock)

	ts := httptest.NewServer(server.NewHandler(svc, nil, server.Options{Version: "test"}))
	t.Cleanup(ts.Close)
	c := client.New(ts.URL + "/")
	c.HTTP = ts.Client()
	return c
}

func TestAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"invalid status transition: draft -> approved"}`))
	}))
	defer ts.Close()

	c := client.New(ts.URL)
	c.Token = "secret"
	_, err := c.GetLoan(context.Background(), "L1")

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid status transition: draft -> approved", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "409")
}

func TestAPIErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := client.New(ts.URL).Health(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestSessionLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Me(ctx)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	session, err := c.Login(ctx, "accountant@microloan.local", "demo1234")
	require.NoError(t, err)
	assert.Equal(t, session.Token, c.Token)

	user, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "accountant@microloan.local", user.Email)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Token)
}

func TestCalculators(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	quote, err := c.CalculateInstallment(ctx, client.Calculation{Product: "Business Starter", Principal: 10000, TermMonths: 12})
	require.NoError(t, err)
	assert.Equal(t, 937.5, quote.Installment)

	rate := 18.0
	schedule, err := c.CalculateSchedule(ctx, client.Calculation{
		Principal: 12000, TermMonths: 6, AnnualRate: &rate, InterestType: loans.Flat, FirstDueDate: "2025-02-15",
	})
	require.NoError(t, err)
	require.Len(t, schedule.Schedule, 6)
	assert.Equal(t, 1080.0, schedule.Totals.Interest)
	assert.Equal(t, 0.0, schedule.Schedule[5].Balance)

	payoff, err := c.CalculatePayoff(ctx, client.PayoffCalculation{
		RemainingPrincipal: 12000, TermMonths: 6, StartDate: "2025-01-15", AsOf: "2025-03-15",
	})
	require.NoError(t, err)
	assert.Equal(t, 11400.0, payoff.TotalPayoff)

	split, err := c.CalculateAllocation(ctx, 3000, allocation.InterestFirst, allocation.Outstanding{})
	require.NoError(t, err)
	assert.Equal(t, 500.0, split.Interest)
	assert.Equal(t, 2500.0, split.Principal)

	_, err = c.CalculateAllocation(ctx, 3000, "sideways", allocation.Outstanding{})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestApplicationToRepayment(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	b, err := c.CreateBorrower(ctx, client.NewBorrower{
		FullName: "Grace Wanjiru", Phone: "+254734567890", NationalID: "34567890",
		CreditScore: 690, MonthlyIncome: 80000, KYCStatus: domain.KYCVerified,
	})
	require.NoError(t, err)

	app, err := c.CreateApplication(ctx, application.CreateRequest{
		BorrowerID: b.ID, Product: "Emergency", Principal: 12000, TermMonths: 6, Frequency: loans.Monthly,
	})
	require.NoError(t, err)
	for _, action := range []string{"submit", "review", "approve"} {
		app, err = c.ApplicationAction(ctx, app.ID, action, client.Action{Actor: "officer"})
		require.NoError(t, err, action)
	}
	assert.Equal(t, domain.StatusApproved, app.Status)

	loan, err := c.Disburse(ctx, app.ID, client.Action{Actor: "officer", DisbursedAt: "2025-01-15"})
	require.NoError(t, err)
	assert.Equal(t, 2180.0, loan.Installment)

	repaid, err := c.CreateRepayment(ctx, lending.RepaymentRequest{
		LoanID: loan.ID, Amount: 2180, PaidAt: datetime.MustParseDate("2025-02-15"),
		Policy: allocation.Scheduled, Reference: "MPESA-77",
	})
	require.NoError(t, err)
	assert.Equal(t, 10000.0, repaid.Loan.Outstanding)

	payments, err := c.ListRepayments(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	report, err := c.ReconcileCSV(ctx,
		strings.NewReader("id,date,amount,reference,description\nX1,2025-02-15,2180,MPESA-77,\n"),
		"bank", datetime.MustParseDate("2025-02-01"), datetime.MustParseDate("2025-02-28"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Matched)

	quote, err := c.LoanPayoff(ctx, loan.ID, datetime.MustParseDate("2025-02-20"))
	require.NoError(t, err)
	assert.Equal(t, 9500.0, quote.AmountDue)

	detail, err := c.GetBorrower(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Loans, 1)

	apps, err := c.ListApplications(ctx, application.Filter{Status: domain.StatusApproved})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestSampleDataAndStats(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	asOf := datetime.MustParseDate("2025-06-15")

	summary, err := c.InitSampleData(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Borrowers)

	stats, err := c.DashboardStats(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OverdueLoans)

	overdue, err := c.RefreshArrears(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, summary.OverdueLoanID, overdue[0].ID)

	active, err := c.ListLoans(ctx, domain.LoanActive, "")
	require.NoError(t, err)
	assert.Len(t, active, 3)

	borrowers, err := c.ListBorrowers(ctx, "mwangi")
	require.NoError(t, err)
	assert.Len(t, borrowers, 1)
}

func TestSignupDraft(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	draft, err := c.NextStep(ctx, wizard.SignupForm, "grace", map[string]string{
		"fullName": "Grace Wanjiru", "email": "grace@example.com", "phone": "+254734567890",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, draft.CurrentStep)
	assert.NotEmpty(t, draft.Errors["password"])

	draft, err = c.SaveDraft(ctx, wizard.SignupForm, "grace", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, draft.CurrentStep)

	_, err = c.SubmitSignup(ctx, "grace", map[string]string{"password": "secret-pass"})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	user, err := c.SubmitSignup(ctx, "grace", map[string]string{
		"password": "secret-pass", "confirmPassword": "secret-pass", "nationalId": "23456789",
		"dateOfBirth": "1990-04-12", "otp": "123456", "acceptTerms": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", user.Email)

	_, err = c.GetDraft(ctx, wizard.SignupForm, "grace")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = c.Login(ctx, "grace@example.com", "secret-pass")
	require.NoError(t, err)
}
