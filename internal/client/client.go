// Package client is a Go client for the microloan REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iwvelando/microloan/internal/application"
	"github.com/iwvelando/microloan/internal/auth"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/internal/lending"
	"github.com/iwvelando/microloan/internal/portfolio"
	"github.com/iwvelando/microloan/internal/reconcile"
	"github.com/iwvelando/microloan/internal/sample"
	"github.com/iwvelando/microloan/internal/wizard"
	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/loans"
)

// APIError is a non-2xx response. Message is the server's error text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("microloan api: %d %s", e.StatusCode, e.Message)
}

// Client calls the API at BaseURL. Token, when set, is sent as a bearer
// token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a client for base using a client with a 30 second timeout.
func New(base string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	return c.send(ctx, method, path, query, "application/json", body, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out interface{}) error {
	target := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func dateQuery(key string, t time.Time) url.Values {
	if t.IsZero() {
		return nil
	}
	return url.Values{key: {t.Format(constants.DateLayout)}}
}

// Health reports the server status.
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
	return out, err
}

// Login signs in and keeps the session token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var session auth.Session
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, in, &session); err != nil {
		return auth.Session{}, err
	}
	c.Token = session.Token
	return session, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.Token = ""
	return nil
}

// Me returns the signed in user.
func (c *Client) Me(ctx context.Context) (auth.User, error) {
	var user auth.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &user)
	return user, err
}

// NewBorrower is the input for CreateBorrower.
type NewBorrower struct {
	FullName      string           `json:"fullName"`
	Email         string           `json:"email,omitempty"`
	Phone         string           `json:"phone"`
	NationalID    string           `json:"nationalId"`
	BusinessName  string           `json:"businessName,omitempty"`
	CreditScore   int              `json:"creditScore,omitempty"`
	MonthlyIncome float64          `json:"monthlyIncome,omitempty"`
	KYCStatus     domain.KYCStatus `json:"kycStatus,omitempty"`
}

func (c *Client) CreateBorrower(ctx context.Context, b NewBorrower) (domain.Borrower, error) {
	var out domain.Borrower
	err := c.do(ctx, http.MethodPost, "/borrowers", nil, b, &out)
	return out, err
}

func (c *Client) ListBorrowers(ctx context.Context, search string) ([]domain.Borrower, error) {
	var out []domain.Borrower
	var q url.Values
	if search != "" {
		q = url.Values{"search": {search}}
	}
	err := c.do(ctx, http.MethodGet, "/borrowers", q, nil, &out)
	return out, err
}

// BorrowerDetail is a borrower with their loans.
type BorrowerDetail struct {
	domain.Borrower
	Loans []domain.Loan `json:"loans"`
}

func (c *Client) GetBorrower(ctx context.Context, id string) (BorrowerDetail, error) {
	var out BorrowerDetail
	err := c.do(ctx, http.MethodGet, "/borrowers/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) ListLoans(ctx context.Context, status domain.LoanStatus, borrowerID string) ([]domain.Loan, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if borrowerID != "" {
		q.Set("borrowerId", borrowerID)
	}
	var out []domain.Loan
	err := c.do(ctx, http.MethodGet, "/loans", q, nil, &out)
	return out, err
}

// CreateLoan originates a loan directly, without an application.
func (c *Client) CreateLoan(ctx context.Context, req lending.OriginateRequest) (domain.Loan, error) {
	var out domain.Loan
	err := c.do(ctx, http.MethodPost, "/loans", nil, req, &out)
	return out, err
}

func (c *Client) GetLoan(ctx context.Context, id string) (domain.Loan, error) {
	var out domain.Loan
	err := c.do(ctx, http.MethodGet, "/loans/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// LoanPayoff quotes early repayment. A zero asOf means today on the server.
func (c *Client) LoanPayoff(ctx context.Context, id string, asOf time.Time) (lending.PayoffQuote, error) {
	var out lending.PayoffQuote
	err := c.do(ctx, http.MethodGet, "/loans/"+url.PathEscape(id)+"/payoff", dateQuery("asOf", asOf), nil, &out)
	return out, err
}

// RefreshArrears recomputes overdue days and penalties and returns the loans
// in arrears.
func (c *Client) RefreshArrears(ctx context.Context, asOf time.Time) ([]domain.Loan, error) {
	var out []domain.Loan
	err := c.do(ctx, http.MethodPost, "/loans/refresh-arrears", dateQuery("asOf", asOf), nil, &out)
	return out, err
}

func (c *Client) ListRepayments(ctx context.Context, loanID string) ([]domain.Payment, error) {
	var q url.Values
	if loanID != "" {
		q = url.Values{"loanId": {loanID}}
	}
	var out []domain.Payment
	err := c.do(ctx, http.MethodGet, "/repayments", q, nil, &out)
	return out, err
}

// Repayment is a recorded payment and the loan after it was applied.
type Repayment struct {
	Payment domain.Payment `json:"payment"`
	Loan    domain.Loan    `json:"loan"`
}

func (c *Client) CreateRepayment(ctx context.Context, req lending.RepaymentRequest) (Repayment, error) {
	var out Repayment
	err := c.do(ctx, http.MethodPost, "/repayments", nil, req, &out)
	return out, err
}

func (c *Client) DashboardStats(ctx context.Context, asOf time.Time) (portfolio.DashboardStats, error) {
	var out portfolio.DashboardStats
	err := c.do(ctx, http.MethodGet, "/dashboard/stats", dateQuery("asOf", asOf), nil, &out)
	return out, err
}

// InitSampleData replaces the server's loan book with demonstration data.
func (c *Client) InitSampleData(ctx context.Context, asOf time.Time) (sample.Summary, error) {
	var out sample.Summary
	err := c.do(ctx, http.MethodPost, "/init-sample-data", dateQuery("asOf", asOf), nil, &out)
	return out, err
}

// Calculation is the input for the calculator endpoints. Product fills the
// rate and interest type from the catalog; AnnualRate and InterestType
// override it.
type Calculation struct {
	Product      string             `json:"product,omitempty"`
	Principal    float64            `json:"principal"`
	TermMonths   int                `json:"termMonths"`
	AnnualRate   *float64           `json:"annualRate,omitempty"`
	Frequency    loans.Frequency    `json:"frequency,omitempty"`
	InterestType loans.InterestType `json:"interestType,omitempty"`
	FirstDueDate string             `json:"firstDueDate,omitempty"`
}

func (c *Client) CalculateInstallment(ctx context.Context, in Calculation) (loans.Quote, error) {
	var out loans.Quote
	err := c.do(ctx, http.MethodPost, "/calculate/installment", nil, in, &out)
	return out, err
}

// Schedule is a full repayment schedule with its quote and totals.
type Schedule struct {
	Input  loans.InstallmentInput `json:"input"`
	Quote  loans.Quote            `json:"quote"`
	Totals struct {
		Payment   float64 `json:"payment"`
		Principal float64 `json:"principal"`
		Interest  float64 `json:"interest"`
	} `json:"totals"`
	Schedule []loans.Installment `json:"schedule"`
}

func (c *Client) CalculateSchedule(ctx context.Context, in Calculation) (Schedule, error) {
	var out Schedule
	err := c.do(ctx, http.MethodPost, "/calculate/schedule", nil, in, &out)
	return out, err
}

// PayoffCalculation is the input for CalculatePayoff. Dates use YYYY-MM-DD.
type PayoffCalculation struct {
	RemainingPrincipal float64 `json:"remainingPrincipal"`
	TermMonths         int     `json:"termMonths"`
	StartDate          string  `json:"startDate"`
	AsOf               string  `json:"asOf,omitempty"`
	DiscountRate       float64 `json:"discountRate,omitempty"`
}

func (c *Client) CalculatePayoff(ctx context.Context, in PayoffCalculation) (loans.Payoff, error) {
	var out loans.Payoff
	err := c.do(ctx, http.MethodPost, "/calculate/payoff", nil, in, &out)
	return out, err
}

// CalculateAllocation splits amount by policy. An empty policy uses the
// server default.
func (c *Client) CalculateAllocation(ctx context.Context, amount float64, policy allocation.Policy, owed allocation.Outstanding) (allocation.Split, error) {
	in := struct {
		Amount      float64                `json:"amount"`
		Policy      allocation.Policy      `json:"policy,omitempty"`
		Outstanding allocation.Outstanding `json:"outstanding"`
	}{amount, policy, owed}
	var out allocation.Split
	err := c.do(ctx, http.MethodPost, "/calculate/allocation", nil, in, &out)
	return out, err
}

func (c *Client) ListApplications(ctx context.Context, filter application.Filter) ([]domain.Application, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	var out []domain.Application
	err := c.do(ctx, http.MethodGet, "/applications", q, nil, &out)
	return out, err
}

func (c *Client) CreateApplication(ctx context.Context, req application.CreateRequest) (domain.Application, error) {
	var out domain.Application
	err := c.do(ctx, http.MethodPost, "/applications", nil, req, &out)
	return out, err
}

func (c *Client) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	var out domain.Application
	err := c.do(ctx, http.MethodGet, "/applications/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Action carries the fields a workflow action may use.
type Action struct {
	Actor               string   `json:"actor,omitempty"`
	Note                string   `json:"note,omitempty"`
	Reason              string   `json:"reason,omitempty"`
	Documents           []string `json:"documents,omitempty"`
	ActionID            string   `json:"actionId,omitempty"`
	Body                string   `json:"body,omitempty"`
	MonthlyIncome       float64  `json:"monthlyIncome,omitempty"`
	MonthlyExpenses     float64  `json:"monthlyExpenses,omitempty"`
	ExistingMonthlyDebt float64  `json:"existingMonthlyDebt,omitempty"`
	DisbursedAt         string   `json:"disbursedAt,omitempty"`
}

// ApplicationAction runs a workflow action such as "submit" or "approve"
// and returns the updated application.
func (c *Client) ApplicationAction(ctx context.Context, id, action string, in Action) (domain.Application, error) {
	var out domain.Application
	err := c.do(ctx, http.MethodPost, "/applications/"+url.PathEscape(id)+"/"+url.PathEscape(action), nil, in, &out)
	return out, err
}

// Disburse turns an approved application into a loan.
func (c *Client) Disburse(ctx context.Context, id string, in Action) (domain.Loan, error) {
	var out domain.Loan
	err := c.do(ctx, http.MethodPost, "/applications/"+url.PathEscape(id)+"/disburse", nil, in, &out)
	return out, err
}

// Draft is a wizard form in progress.
type Draft struct {
	Form        string            `json:"form"`
	CurrentStep int               `json:"currentStep"`
	TotalSteps  int               `json:"totalSteps"`
	StepTitle   string            `json:"stepTitle"`
	Values      map[string]string `json:"values"`
	Errors      map[string]string `json:"errors,omitempty"`
	Preview     *loans.Quote      `json:"preview,omitempty"`
}

type draftValues struct {
	CurrentStep int               `json:"currentStep,omitempty"`
	Values      map[string]string `json:"values,omitempty"`
}

func draftPath(form, owner string) string {
	return "/drafts/" + url.PathEscape(form) + "/" + url.PathEscape(owner)
}

func (c *Client) GetDraft(ctx context.Context, form, owner string) (Draft, error) {
	var out Draft
	err := c.do(ctx, http.MethodGet, draftPath(form, owner), nil, nil, &out)
	return out, err
}

// SaveDraft stores values without advancing. step may only move the draft
// back; zero keeps the current step.
func (c *Client) SaveDraft(ctx context.Context, form, owner string, step int, values map[string]string) (Draft, error) {
	var out Draft
	err := c.do(ctx, http.MethodPut, draftPath(form, owner), nil, draftValues{CurrentStep: step, Values: values}, &out)
	return out, err
}

// NextStep applies values and advances when the current step is valid. The
// returned draft carries the step errors otherwise.
func (c *Client) NextStep(ctx context.Context, form, owner string, values map[string]string) (Draft, error) {
	var out Draft
	err := c.do(ctx, http.MethodPost, draftPath(form, owner)+"/next", nil, draftValues{Values: values}, &out)
	return out, err
}

func (c *Client) PreviousStep(ctx context.Context, form, owner string) (Draft, error) {
	var out Draft
	err := c.do(ctx, http.MethodPost, draftPath(form, owner)+"/back", nil, draftValues{}, &out)
	return out, err
}

// SubmitLoanApplication completes the loan application draft of a borrower
// and returns the application it created.
func (c *Client) SubmitLoanApplication(ctx context.Context, borrowerID string, values map[string]string) (domain.Application, error) {
	var out domain.Application
	err := c.do(ctx, http.MethodPost, draftPath(wizard.LoanApplicationForm, borrowerID)+"/submit", nil, draftValues{Values: values}, &out)
	return out, err
}

// SubmitSignup completes a signup draft. Passwords are never stored in
// drafts, so values must carry them.
func (c *Client) SubmitSignup(ctx context.Context, owner string, values map[string]string) (auth.User, error) {
	var out auth.User
	err := c.do(ctx, http.MethodPost, draftPath(wizard.SignupForm, owner)+"/submit", nil, draftValues{Values: values}, &out)
	return out, err
}

func (c *Client) DeleteDraft(ctx context.Context, form, owner string) error {
	return c.do(ctx, http.MethodDelete, draftPath(form, owner), nil, nil, nil)
}

// Reconcile matches recorded payments against statement lines within the
// inclusive date range; zero dates leave the range open.
func (c *Client) Reconcile(ctx context.Context, lines []reconcile.StatementLine, start, end time.Time) (*reconcile.Report, error) {
	in := struct {
		Start string                    `json:"start,omitempty"`
		End   string                    `json:"end,omitempty"`
		Lines []reconcile.StatementLine `json:"lines"`
	}{Lines: lines}
	if !start.IsZero() {
		in.Start = start.Format(constants.DateLayout)
	}
	if !end.IsZero() {
		in.End = end.Format(constants.DateLayout)
	}
	var out reconcile.Report
	if err := c.do(ctx, http.MethodPost, "/reconcile", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReconcileCSV posts a CSV statement as read by reconcile.ParseStatementCSV.
func (c *Client) ReconcileCSV(ctx context.Context, csv io.Reader, source string, start, end time.Time) (*reconcile.Report, error) {
	q := url.Values{}
	if source != "" {
		q.Set("source", source)
	}
	if !start.IsZero() {
		q.Set("start", start.Format(constants.DateLayout))
	}
	if !end.IsZero() {
		q.Set("end", end.Format(constants.DateLayout))
	}
	var out reconcile.Report
	if err := c.send(ctx, http.MethodPost, "/reconcile", q, "text/csv", csv, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
