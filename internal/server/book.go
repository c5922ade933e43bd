package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/internal/lending"
	"github.com/iwvelando/microloan/internal/sample"
	"github.com/iwvelando/microloan/pkg/validation"
	"go.uber.org/zap"
)

type borrowerRequest struct {
	FullName      string           `json:"fullName"`
	Email         string           `json:"email"`
	Phone         string           `json:"phone"`
	NationalID    string           `json:"nationalId"`
	BusinessName  string           `json:"businessName"`
	CreditScore   int              `json:"creditScore"`
	MonthlyIncome float64          `json:"monthlyIncome"`
	KYCStatus     domain.KYCStatus `json:"kycStatus"`
}

func (req borrowerRequest) validate() map[string]string {
	errs := make(map[string]string)
	check := func(field, value string, required bool, v validation.Validator) {
		if strings.TrimSpace(value) == "" {
			if required {
				errs[field] = validation.ErrRequired.Error()
			}
			return
		}
		if v != nil {
			if err := v(value); err != nil {
				errs[field] = err.Error()
			}
		}
	}
	check("fullName", req.FullName, true, nil)
	check("phone", req.Phone, true, validation.Phone)
	check("nationalId", req.NationalID, true, validation.NationalID)
	check("email", req.Email, false, validation.Email)
	if req.CreditScore != 0 && (req.CreditScore < 300 || req.CreditScore > 850) {
		errs["creditScore"] = "credit score must be between 300 and 850"
	}
	if req.MonthlyIncome < 0 {
		errs["monthlyIncome"] = "monthly income cannot be negative"
	}
	switch req.KYCStatus {
	case "", domain.KYCPending, domain.KYCVerified, domain.KYCRejected:
	default:
		errs["kycStatus"] = fmt.Sprintf("unknown KYC status %q", req.KYCStatus)
	}
	return errs
}

func (h *handler) handleCreateBorrower(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateBorrower"
	var req borrowerRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		h.logger.Warn("borrower rejected", zap.String("op", op), zap.Any("fields", errs))
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid borrower", "fields": errs})
		return
	}
	if req.KYCStatus == "" {
		req.KYCStatus = domain.KYCPending
	}
	b := domain.Borrower{
		ID:            uuid.NewString(),
		FullName:      strings.TrimSpace(req.FullName),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		NationalID:    strings.TrimSpace(req.NationalID),
		BusinessName:  strings.TrimSpace(req.BusinessName),
		CreditScore:   req.CreditScore,
		KYCStatus:     req.KYCStatus,
		MonthlyIncome: req.MonthlyIncome,
		CreatedAt:     h.svc.Now(),
	}
	if err := h.svc.Store.SaveBorrower(b); err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, b)
}

func (h *handler) handleListBorrowers(w http.ResponseWriter, r *http.Request) {
	borrowers, err := h.svc.Store.Borrowers()
	if err != nil {
		h.respondErr(w, err, "server.handleListBorrowers")
		return
	}
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	result := make([]domain.Borrower, 0, len(borrowers))
	for _, b := range borrowers {
		if search == "" ||
			strings.Contains(strings.ToLower(b.FullName), search) ||
			strings.Contains(strings.ToLower(b.BusinessName), search) ||
			strings.Contains(b.Phone, search) ||
			strings.Contains(b.NationalID, search) {
			result = append(result, b)
		}
	}
	h.writeJSON(w, http.StatusOK, result)
}

type borrowerDetail struct {
	domain.Borrower
	Loans []domain.Loan `json:"loans"`
}

func (h *handler) handleGetBorrower(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGetBorrower"
	b, err := h.svc.Store.Borrower(r.PathValue("id"))
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	loans, err := h.svc.Lending.List("", b.ID)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, borrowerDetail{Borrower: b, Loans: loans})
}

func (h *handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.LoanStatus(q.Get("status"))
	switch status {
	case "", domain.LoanActive, domain.LoanClosed:
	default:
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("unknown loan status %q", status), "server.handleListLoans")
		return
	}
	loans, err := h.svc.Lending.List(status, q.Get("borrowerId"))
	if err != nil {
		h.respondErr(w, err, "server.handleListLoans")
		return
	}
	if loans == nil {
		loans = []domain.Loan{}
	}
	h.writeJSON(w, http.StatusOK, loans)
}

func (h *handler) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateLoan"
	var req lending.OriginateRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	loan, err := h.svc.Lending.Originate(req)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, loan)
}

func (h *handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.svc.Lending.Get(r.PathValue("id"))
	if err != nil {
		h.respondErr(w, err, "server.handleGetLoan")
		return
	}
	h.writeJSON(w, http.StatusOK, loan)
}

func (h *handler) handleLoanPayoff(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLoanPayoff"
	asOf, err := dateParam(r, "asOf", h.svc.Now())
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	quote, err := h.svc.Lending.Payoff(r.PathValue("id"), asOf)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

func (h *handler) handleRefreshArrears(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRefreshArrears"
	asOf, err := dateParam(r, "asOf", h.svc.Now())
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	overdue, err := h.svc.Lending.RefreshArrears(asOf)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	if overdue == nil {
		overdue = []domain.Loan{}
	}
	h.writeJSON(w, http.StatusOK, overdue)
}

func (h *handler) handleListRepayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.Lending.Payments(r.URL.Query().Get("loanId"))
	if err != nil {
		h.respondErr(w, err, "server.handleListRepayments")
		return
	}
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].PaidAt.After(payments[j].PaidAt) })
	if payments == nil {
		payments = []domain.Payment{}
	}
	h.writeJSON(w, http.StatusOK, payments)
}

type repaymentResponse struct {
	Payment domain.Payment `json:"payment"`
	Loan    domain.Loan    `json:"loan"`
}

func (h *handler) handleCreateRepayment(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateRepayment"
	var req lending.RepaymentRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	payment, loan, err := h.svc.Lending.RecordRepayment(req)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, repaymentResponse{Payment: payment, Loan: loan})
}

func (h *handler) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDashboardStats"
	asOf, err := dateParam(r, "asOf", h.svc.Now())
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	stats, err := h.svc.Reporter.Stats(asOf)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *handler) handleInitSampleData(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleInitSampleData"
	asOf, err := dateParam(r, "asOf", h.svc.Now())
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	loader := sample.Loader{
		Store:        h.svc.Store,
		Applications: h.svc.Applications,
		Lending:      h.svc.Lending,
		Logger:       h.logger,
	}
	summary, err := loader.Load(asOf)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, summary)
}
