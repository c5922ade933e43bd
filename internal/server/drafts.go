package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iwvelando/microloan/internal/application"
	"github.com/iwvelando/microloan/internal/auth"
	"github.com/iwvelando/microloan/internal/wizard"
	"github.com/iwvelando/microloan/pkg/loans"
	"go.uber.org/zap"
)

func definitionFor(form string, h *handler) (wizard.Definition, bool) {
	switch form {
	case wizard.LoanApplicationForm:
		return wizard.LoanApplication(h.svc.Config.Catalog()), true
	case wizard.SignupForm:
		return wizard.Signup(), true
	default:
		return wizard.Definition{}, false
	}
}

type draftRequest struct {
	CurrentStep int               `json:"currentStep"`
	Values      map[string]string `json:"values"`
}

type draftResponse struct {
	Form        string            `json:"form"`
	CurrentStep int               `json:"currentStep"`
	TotalSteps  int               `json:"totalSteps"`
	StepTitle   string            `json:"stepTitle"`
	Values      map[string]string `json:"values"`
	Errors      map[string]string `json:"errors,omitempty"`
	Preview     *loans.Quote      `json:"preview,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// draftView renders the wizard. The loan application's review step carries
// an installment preview.
func (h *handler) draftView(wz *wizard.Wizard) draftResponse {
	view := draftResponse{
		Form:        wz.Definition().Name,
		CurrentStep: wz.CurrentStep,
		TotalSteps:  wz.TotalSteps(),
		StepTitle:   wz.Step().Title,
		Values:      wz.Values,
		Errors:      wz.Errors,
	}
	if view.Form == wizard.LoanApplicationForm && wz.CurrentStep == wz.TotalSteps() {
		if quote, err := wizard.Preview(h.svc.Config.Catalog(), wz.Values); err == nil {
			view.Preview = &quote
		}
	}
	return view
}

// loadDraft resumes the stored draft or starts a new one.
func (h *handler) loadDraft(r *http.Request, def wizard.Definition, key string) (*wizard.Wizard, error) {
	wz, err := wizard.Resume(r.Context(), h.svc.Cache, key, def)
	if errors.Is(err, wizard.ErrNoDraft) {
		return wizard.New(def), nil
	}
	return wz, err
}

// storeDraft saves the wizard without its password fields.
func (h *handler) storeDraft(r *http.Request, wz *wizard.Wizard, key string) error {
	delete(wz.Values, wizard.FieldPassword)
	delete(wz.Values, wizard.FieldConfirmPassword)
	return wz.SaveDraft(r.Context(), h.svc.Cache, key, h.svc.Config.Cache.DraftTTL)
}

func (h *handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGetDraft"
	form := r.PathValue("form")
	def, ok := definitionFor(form, h)
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unknown form %q", form), op)
		return
	}
	wz, err := wizard.Resume(r.Context(), h.svc.Cache, wizard.DraftKey(form, r.PathValue("owner")), def)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, h.draftView(wz))
}

// handleSaveDraft stores the form values and reports the errors on the
// current step so the client can show them without losing progress. The
// step may move back but never past the one already reached; advancing goes
// through the next action.
func (h *handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSaveDraft"
	form := r.PathValue("form")
	def, ok := definitionFor(form, h)
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unknown form %q", form), op)
		return
	}
	var req draftRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	key := wizard.DraftKey(form, r.PathValue("owner"))
	wz, err := h.loadDraft(r, def, key)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	wz.SetAll(req.Values)
	if req.CurrentStep > 0 {
		wz.CurrentStep = min(req.CurrentStep, wz.CurrentStep)
	}
	wz.Errors = wz.ValidateStep(wz.CurrentStep)

	if err := h.storeDraft(r, wz, key); err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, h.draftView(wz))
}

// handleDraftAction moves a draft through its form: next validates the
// current step and advances only when it is valid, back returns one step,
// and submit validates every step and completes the form. Values in the
// body are applied first.
func (h *handler) handleDraftAction(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDraftAction"
	form, owner, action := r.PathValue("form"), r.PathValue("owner"), r.PathValue("action")
	def, ok := definitionFor(form, h)
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unknown form %q", form), op)
		return
	}
	var req draftRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req, op) {
		return
	}

	key := wizard.DraftKey(form, owner)
	wz, err := h.loadDraft(r, def, key)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	wz.SetAll(req.Values)

	switch action {
	case "next":
		wz.Next()
	case "back":
		wz.Back()
	case "submit":
		h.submitDraft(w, r, wz, key, owner)
		return
	default:
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unknown draft action %q", action), op)
		return
	}

	if err := h.storeDraft(r, wz, key); err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, h.draftView(wz))
}

// submitDraft completes a form. A loan application becomes a draft
// application for the owning borrower; a signup registers a user. The draft
// is discarded once the result is stored.
func (h *handler) submitDraft(w http.ResponseWriter, r *http.Request, wz *wizard.Wizard, key, owner string) {
	const op = "server.submitDraft"
	values, err := wz.Submit()
	if err != nil {
		view := h.draftView(wz)
		view.Error = err.Error()
		if saveErr := h.storeDraft(r, wz, key); saveErr != nil {
			h.respondErr(w, saveErr, op)
			return
		}
		h.logger.Warn("draft submitted with errors",
			zap.String("op", op),
			zap.Int("step", wz.CurrentStep),
			zap.Any("fields", view.Errors),
		)
		h.writeJSON(w, http.StatusBadRequest, view)
		return
	}

	var created interface{}
	switch wz.Definition().Name {
	case wizard.LoanApplicationForm:
		lr, err := wizard.ParseLoanRequest(values)
		if err != nil {
			h.respondErr(w, badRequest("%v", err), op)
			return
		}
		created, err = h.svc.Applications.Create(application.CreateRequest{
			BorrowerID: owner,
			Product:    lr.Product,
			Principal:  lr.Principal,
			TermMonths: lr.TermMonths,
			Frequency:  lr.Frequency,
			Purpose:    lr.Purpose,
			Actor:      owner,
		})
		if err != nil {
			h.respondErr(w, err, op)
			return
		}
	case wizard.SignupForm:
		created, err = h.svc.Auth.AddUser(auth.User{
			Name:  strings.TrimSpace(values[wizard.FieldFullName]),
			Email: values[wizard.FieldEmail],
		}, values[wizard.FieldPassword])
		if err != nil {
			h.respondErr(w, err, op)
			return
		}
	}

	if err := wizard.DiscardDraft(r.Context(), h.svc.Cache, key); err != nil {
		h.logger.Warn("could not discard submitted draft", zap.String("op", op), zap.Error(err))
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *handler) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	key := wizard.DraftKey(r.PathValue("form"), r.PathValue("owner"))
	if err := wizard.DiscardDraft(r.Context(), h.svc.Cache, key); err != nil {
		h.respondErr(w, err, "server.handleDeleteDraft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
