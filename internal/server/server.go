// Package server exposes the microloan back office as a JSON REST API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/microloan/internal/application"
	"github.com/iwvelando/microloan/internal/auth"
	"github.com/iwvelando/microloan/internal/credit"
	"github.com/iwvelando/microloan/internal/lending"
	"github.com/iwvelando/microloan/internal/reconcile"
	"github.com/iwvelando/microloan/internal/repository"
	"github.com/iwvelando/microloan/internal/wizard"
	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/datetime"
	"github.com/iwvelando/microloan/pkg/loans"
	"go.uber.org/zap"
)

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type handler struct {
	svc          *Services
	logger       *zap.Logger
	maxBodyBytes int64
	version      string
}

// Options tune the handler.
type Options struct {
	Version string
	// RateLimiter, when set, bounds requests per client IP.
	RateLimiter *RateLimiter
}

// NewHandler constructs the HTTP handler serving the REST API.
func NewHandler(svc *Services, logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}
	h := &handler{
		svc:          svc,
		logger:       logger,
		maxBodyBytes: svc.Config.Server.MaxBodyBytes(),
		version:      version,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /config", h.handleConfigExport)

	mux.HandleFunc("GET /auth/me", h.handleMe)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)

	mux.HandleFunc("GET /borrowers", h.handleListBorrowers)
	mux.HandleFunc("POST /borrowers", h.handleCreateBorrower)
	mux.HandleFunc("GET /borrowers/{id}", h.handleGetBorrower)

	mux.HandleFunc("GET /loans", h.handleListLoans)
	mux.HandleFunc("POST /loans", h.handleCreateLoan)
	mux.HandleFunc("GET /loans/{id}", h.handleGetLoan)
	mux.HandleFunc("GET /loans/{id}/payoff", h.handleLoanPayoff)
	mux.HandleFunc("POST /loans/refresh-arrears", h.handleRefreshArrears)

	mux.HandleFunc("GET /repayments", h.handleListRepayments)
	mux.HandleFunc("POST /repayments", h.handleCreateRepayment)

	mux.HandleFunc("GET /dashboard/stats", h.handleDashboardStats)
	mux.HandleFunc("POST /init-sample-data", h.handleInitSampleData)

	mux.HandleFunc("POST /calculate/installment", h.handleCalculateInstallment)
	mux.HandleFunc("POST /calculate/schedule", h.handleCalculateSchedule)
	mux.HandleFunc("POST /calculate/payoff", h.handleCalculatePayoff)
	mux.HandleFunc("POST /calculate/allocation", h.handleCalculateAllocation)

	mux.HandleFunc("GET /applications", h.handleListApplications)
	mux.HandleFunc("POST /applications", h.handleCreateApplication)
	mux.HandleFunc("GET /applications/{id}", h.handleGetApplication)
	mux.HandleFunc("POST /applications/{id}/{action}", h.handleApplicationAction)

	mux.HandleFunc("GET /drafts/{form}/{owner}", h.handleGetDraft)
	mux.HandleFunc("PUT /drafts/{form}/{owner}", h.handleSaveDraft)
	mux.HandleFunc("DELETE /drafts/{form}/{owner}", h.handleDeleteDraft)
	mux.HandleFunc("POST /drafts/{form}/{owner}/{action}", h.handleDraftAction)

	mux.HandleFunc("POST /reconcile", h.handleReconcile)

	var root http.Handler = mux
	if opts.RateLimiter != nil {
		root = RateLimitMiddleware(opts.RateLimiter, root)
	}
	root = loggingMiddleware(logger, root)
	if origins := svc.Config.Server.AllowedOrigins; len(origins) > 0 {
		root = corsMiddleware(origins)(root)
	}
	return root
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"cache":   h.svc.Config.Cache.Backend,
	}
	if p, ok := h.svc.Cache.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			h.logger.Error("health probe failed", zap.String("op", "server.handleHealth"), zap.Error(err))
			status = http.StatusServiceUnavailable
			payload["status"] = "degraded"
			payload["error"] = err.Error()
		}
	}
	h.writeJSON(w, status, payload)
}

func (h *handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Auth.Me(auth.BearerToken(r.Header.Get("Authorization")))
	if err != nil {
		h.respondErr(w, err, "server.handleMe")
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req, "server.handleLogin") {
		return
	}
	session, err := h.svc.Auth.SignIn(req.Email, req.Password)
	if err != nil {
		h.respondErr(w, err, "server.handleLogin")
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.svc.Auth.SignOut(auth.BearerToken(r.Header.Get("Authorization")))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// decode reads a JSON body into dst, responding with an error when it
// cannot.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodyBytes), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, application.ErrActionNotFound),
		errors.Is(err, wizard.ErrNoDraft):
		return http.StatusNotFound
	case errors.Is(err, application.ErrInvalidTransition),
		errors.Is(err, application.ErrAlreadyDisbursed),
		errors.Is(err, lending.ErrNotApproved),
		errors.Is(err, lending.ErrLoanClosed),
		errors.Is(err, lending.ErrDisbursed),
		errors.Is(err, wizard.ErrDefinitionMismatch),
		errors.Is(err, auth.ErrDuplicateUser):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnknownSession):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, wizard.ErrIncomplete),
		errors.Is(err, application.ErrInvalidRequest),
		errors.Is(err, application.ErrUnknownProduct),
		errors.Is(err, application.ErrReasonRequired),
		errors.Is(err, lending.ErrUnknownProduct),
		errors.Is(err, lending.ErrInvalidRepayment),
		errors.Is(err, lending.ErrProductLimits),
		errors.Is(err, loans.ErrInvalidPrincipal),
		errors.Is(err, loans.ErrInvalidTerm),
		errors.Is(err, loans.ErrInvalidRate),
		errors.Is(err, loans.ErrInvalidBalance),
		errors.Is(err, loans.ErrUnknownFrequency),
		errors.Is(err, loans.ErrUnknownInterestType),
		errors.Is(err, loans.ErrNonFiniteQuote),
		errors.Is(err, loans.ErrInvalidDiscount),
		errors.Is(err, reconcile.ErrDuplicateLine),
		errors.Is(err, allocation.ErrInvalidAmount),
		errors.Is(err, allocation.ErrUnknownPolicy),
		errors.Is(err, allocation.ErrInvalidRules),
		errors.Is(err, credit.ErrInvalidScore),
		errors.Is(err, credit.ErrInvalidIncome):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondErr(w http.ResponseWriter, err error, op string) {
	h.respondErrorWithOp(w, statusFor(err), err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}

// dateParam parses an optional YYYY-MM-DD query parameter, returning
// fallback when absent.
func dateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return fallback, nil
	}
	t, err := datetime.ParseDate(value)
	if err != nil {
		return time.Time{}, badRequest("%s must use the %s layout", name, constants.DateLayout)
	}
	return t, nil
}

// optionalDate parses a YYYY-MM-DD body field.
func optionalDate(name, value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	t, err := datetime.ParseDate(value)
	if err != nil {
		return time.Time{}, badRequest("%s must use the %s layout", name, constants.DateLayout)
	}
	return t, nil
}
