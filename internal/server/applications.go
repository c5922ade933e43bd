package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/microloan/internal/application"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/internal/reconcile"
)

func (h *handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	apps, err := h.svc.Applications.List(application.Filter{
		Status: domain.ApplicationStatus(q.Get("status")),
		Search: q.Get("search"),
	})
	if err != nil {
		h.respondErr(w, err, "server.handleListApplications")
		return
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	h.writeJSON(w, http.StatusOK, apps)
}

func (h *handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateApplication"
	var req application.CreateRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	app, err := h.svc.Applications.Create(req)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, app)
}

func (h *handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.Applications.Get(r.PathValue("id"))
	if err != nil {
		h.respondErr(w, err, "server.handleGetApplication")
		return
	}
	h.writeJSON(w, http.StatusOK, app)
}

// actionRequest carries the fields any workflow action may use.
type actionRequest struct {
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

func (h *handler) handleApplicationAction(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleApplicationAction"
	id, action := r.PathValue("id"), r.PathValue("action")

	var req actionRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req, op) {
			return
		}
	}

	apps := h.svc.Applications
	var (
		app domain.Application
		err error
	)
	switch action {
	case "submit":
		app, err = apps.Submit(id, req.Actor)
	case "review":
		app, err = apps.StartReview(id, req.Actor)
	case "request-docs":
		app, err = apps.RequestDocuments(id, req.Actor, req.Documents)
	case "complete-action":
		app, err = apps.CompleteAction(id, req.ActionID, req.Actor)
	case "escalate":
		app, err = apps.Escalate(id, req.Actor, req.Note)
	case "approve":
		app, err = apps.Approve(id, req.Actor, req.Note)
	case "reject":
		app, err = apps.Reject(id, req.Actor, req.Reason)
	case "message":
		app, err = apps.PostMessage(id, req.Actor, req.Body)
	case "assess":
		app, err = apps.Assess(id, application.AssessRequest{
			MonthlyIncome:       req.MonthlyIncome,
			MonthlyExpenses:     req.MonthlyExpenses,
			ExistingMonthlyDebt: req.ExistingMonthlyDebt,
			Actor:               req.Actor,
		})
	case "disburse":
		h.disburse(w, id, req)
		return
	default:
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unknown application action %q", action), op)
		return
	}
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, app)
}

func (h *handler) disburse(w http.ResponseWriter, id string, req actionRequest) {
	const op = "server.disburse"
	at, err := optionalDate("disbursedAt", req.DisbursedAt, h.svc.Now())
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	loan, err := h.svc.Lending.Disburse(id, req.Actor, at)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusCreated, loan)
}

type reconcileRequest struct {
	Start string                    `json:"start,omitempty"`
	End   string                    `json:"end,omitempty"`
	Lines []reconcile.StatementLine `json:"lines"`
}

// handleReconcile matches recorded repayments against a statement posted as
// JSON or, with a text/csv content type, as CSV with start and end query
// parameters.
func (h *handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleReconcile"
	var (
		req   reconcileRequest
		lines []reconcile.StatementLine
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		q := r.URL.Query()
		req.Start, req.End = q.Get("start"), q.Get("end")
		source := q.Get("source")
		if source == "" {
			source = "bank"
		}
		body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		parsed, err := reconcile.ParseStatementCSV(body, source)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodyBytes), op)
				return
			}
			h.respondErr(w, badRequest("%v", err), op)
			return
		}
		lines = parsed
	} else {
		if !h.decode(w, r, &req, op) {
			return
		}
		lines = req.Lines
	}

	start, err := optionalDate("start", req.Start, time.Time{})
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	end, err := optionalDate("end", req.End, time.Time{})
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		h.respondErr(w, badRequest("end date is before start date"), op)
		return
	}

	report, err := h.svc.Reconciler.Reconcile(r.Context(), lines, reconcile.Period{Start: start, End: end})
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
