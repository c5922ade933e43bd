// Package application runs loan applications through review, from draft to
// an approval or rejection decision.
package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/microloan/internal/credit"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/pkg/loans"
	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidRequest    = errors.New("invalid application")
	ErrUnknownProduct    = errors.New("unknown loan product")
	ErrReasonRequired    = errors.New("a rejection reason is required")
	ErrActionNotFound    = errors.New("required action not found")
	ErrAlreadyDisbursed  = errors.New("application has already been disbursed")
)

var transitions = map[domain.ApplicationStatus][]domain.ApplicationStatus{
	domain.StatusDraft:       {domain.StatusSubmitted},
	domain.StatusSubmitted:   {domain.StatusUnderReview},
	domain.StatusUnderReview: {domain.StatusPendingDocs, domain.StatusEscalated, domain.StatusApproved, domain.StatusRejected},
	domain.StatusPendingDocs: {domain.StatusUnderReview},
	domain.StatusEscalated:   {domain.StatusUnderReview, domain.StatusApproved, domain.StatusRejected},
}

// CanTransition reports whether an application may move from one status to
// another.
func CanTransition(from, to domain.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service manages loan applications.
type Service struct {
	repo     Repository
	products loans.Catalog
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a new application service.
func NewService(repo Repository, products loans.Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// SetClock replaces the time source, for tests and sample data.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateRequest opens a new application.
type CreateRequest struct {
	BorrowerID string          `json:"borrowerId"`
	Product    string          `json:"product"`
	Principal  float64         `json:"principal"`
	TermMonths int             `json:"termMonths"`
	Frequency  loans.Frequency `json:"frequency"`
	Purpose    string          `json:"purpose,omitempty"`
	Actor      string          `json:"actor,omitempty"`
}

// Create stores a new draft application after checking it against the
// product limits.
func (s *Service) Create(req CreateRequest) (domain.Application, error) {
	if _, err := s.repo.Borrower(req.BorrowerID); err != nil {
		return domain.Application{}, fmt.Errorf("borrower %q: %w", req.BorrowerID, err)
	}
	product, ok := s.products.Find(req.Product)
	if !ok {
		return domain.Application{}, fmt.Errorf("%w: %q", ErrUnknownProduct, req.Product)
	}
	if req.Frequency == "" {
		req.Frequency = loans.Monthly
	}
	if _, err := product.Input(req.Principal, req.TermMonths, req.Frequency).Validate(); err != nil {
		return domain.Application{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := product.CheckAmount(req.Principal); err != nil {
		return domain.Application{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := product.CheckTerm(req.TermMonths); err != nil {
		return domain.Application{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	now := s.now()
	app := domain.Application{
		ID:         s.newID(),
		BorrowerID: req.BorrowerID,
		Product:    product.Name,
		Principal:  req.Principal,
		TermMonths: req.TermMonths,
		Frequency:  req.Frequency,
		Purpose:    strings.TrimSpace(req.Purpose),
		Status:     domain.StatusDraft,
		Timeline:   []domain.TimelineEntry{{At: now, Status: domain.StatusDraft, Actor: actorOr(req.Actor, "borrower"), Note: "application created"}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.SaveApplication(app); err != nil {
		return domain.Application{}, err
	}
	s.logger.Info(fmt.Sprintf("created application %s for %.2f on %s", app.ID, app.Principal, app.Product),
		zap.String("op", "application.Create"),
		zap.String("borrower", app.BorrowerID),
	)
	return app, nil
}

// Submit sends a draft for review.
func (s *Service) Submit(id, actor string) (domain.Application, error) {
	return s.transition(id, domain.StatusSubmitted, actorOr(actor, "borrower"), "submitted for review", "application.Submit", nil)
}

// StartReview assigns a submitted application to an officer.
func (s *Service) StartReview(id, actor string) (domain.Application, error) {
	return s.transition(id, domain.StatusUnderReview, actorOr(actor, "officer"), "review started", "application.StartReview", nil)
}

// RequestDocuments asks the borrower for the listed documents.
func (s *Service) RequestDocuments(id, actor string, documents []string) (domain.Application, error) {
	var wanted []string
	for _, d := range documents {
		if d = strings.TrimSpace(d); d != "" {
			wanted = append(wanted, d)
		}
	}
	if len(wanted) == 0 {
		return domain.Application{}, fmt.Errorf("%w: at least one document must be requested", ErrInvalidRequest)
	}
	note := "requested " + strings.Join(wanted, ", ")
	return s.transition(id, domain.StatusPendingDocs, actorOr(actor, "officer"), note, "application.RequestDocuments",
		func(app *domain.Application) error {
			for _, d := range wanted {
				app.RequiredActions = append(app.RequiredActions, domain.RequiredAction{ID: s.newID(), Description: d})
			}
			return nil
		})
}

// CompleteAction marks a required action done. When nothing is left pending
// the application returns to review.
func (s *Service) CompleteAction(id, actionID, actor string) (domain.Application, error) {
	app, err := s.repo.Application(id)
	if err != nil {
		return domain.Application{}, err
	}
	if app.Status != domain.StatusPendingDocs {
		return domain.Application{}, fmt.Errorf("%w: no documents pending while %s", ErrInvalidTransition, app.Status)
	}

	now := s.now()
	found := false
	for i := range app.RequiredActions {
		if app.RequiredActions[i].ID == actionID {
			if app.RequiredActions[i].Done() {
				return app, nil
			}
			app.RequiredActions[i].CompletedAt = &now
			found = true
			break
		}
	}
	if !found {
		return domain.Application{}, fmt.Errorf("%w: %q", ErrActionNotFound, actionID)
	}

	if len(app.PendingActions()) == 0 {
		app.Status = domain.StatusUnderReview
		app.Timeline = append(app.Timeline, domain.TimelineEntry{At: now, Status: app.Status, Actor: actorOr(actor, "borrower"), Note: "all documents received"})
	}
	app.UpdatedAt = now
	if err := s.repo.SaveApplication(app); err != nil {
		return domain.Application{}, err
	}
	s.logger.Debug("completed required action",
		zap.String("op", "application.CompleteAction"),
		zap.String("id", id),
		zap.String("action", actionID),
		zap.Int("pending", len(app.PendingActions())),
	)
	return app, nil
}

// Escalate hands the application to a senior officer.
func (s *Service) Escalate(id, actor, note string) (domain.Application, error) {
	return s.transition(id, domain.StatusEscalated, actorOr(actor, "officer"), noteOr(note, "escalated"), "application.Escalate", nil)
}

// Approve accepts the application.
func (s *Service) Approve(id, actor, note string) (domain.Application, error) {
	return s.transition(id, domain.StatusApproved, actorOr(actor, "officer"), noteOr(note, "approved"), "application.Approve", nil)
}

// Reject declines the application. A reason is mandatory.
func (s *Service) Reject(id, actor, reason string) (domain.Application, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Application{}, ErrReasonRequired
	}
	return s.transition(id, domain.StatusRejected, actorOr(actor, "officer"), reason, "application.Reject",
		func(app *domain.Application) error {
			app.RejectionReason = reason
			return nil
		})
}

// PostMessage appends a message to the application's conversation.
func (s *Service) PostMessage(id, author, body string) (domain.Application, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Application{}, fmt.Errorf("%w: message body is empty", ErrInvalidRequest)
	}
	app, err := s.repo.Application(id)
	if err != nil {
		return domain.Application{}, err
	}
	now := s.now()
	app.Messages = append(app.Messages, domain.Message{At: now, Author: actorOr(author, "borrower"), Body: body})
	app.UpdatedAt = now
	if err := s.repo.SaveApplication(app); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// AssessRequest supplies the figures not held on the borrower record.
type AssessRequest struct {
	MonthlyIncome       float64 `json:"monthlyIncome,omitempty"` // zero uses the borrower record
	MonthlyExpenses     float64 `json:"monthlyExpenses"`
	ExistingMonthlyDebt float64 `json:"existingMonthlyDebt"`
	Actor               string  `json:"actor,omitempty"`
}

// Assess runs a credit assessment for an application in review and stores the
// result on it. The status does not change.
func (s *Service) Assess(id string, req AssessRequest) (domain.Application, error) {
	app, err := s.repo.Application(id)
	if err != nil {
		return domain.Application{}, err
	}
	if app.Status == domain.StatusDraft || app.Status.Terminal() {
		return domain.Application{}, fmt.Errorf("%w: cannot assess while %s", ErrInvalidTransition, app.Status)
	}
	borrower, err := s.repo.Borrower(app.BorrowerID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("borrower %q: %w", app.BorrowerID, err)
	}
	monthly, err := s.MonthlyInstallment(app)
	if err != nil {
		return domain.Application{}, err
	}

	income := req.MonthlyIncome
	if income <= 0 {
		income = borrower.MonthlyIncome
	}
	result, err := credit.Assess(credit.Input{
		CreditScore:         borrower.CreditScore,
		MonthlyIncome:       income,
		MonthlyExpenses:     req.MonthlyExpenses,
		ExistingMonthlyDebt: req.ExistingMonthlyDebt,
		ProposedInstallment: monthly,
		KYCVerified:         borrower.KYCStatus == domain.KYCVerified,
	})
	if err != nil {
		return domain.Application{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	now := s.now()
	app.Assessment = &result
	app.Timeline = append(app.Timeline, domain.TimelineEntry{
		At:     now,
		Status: app.Status,
		Actor:  actorOr(req.Actor, "officer"),
		Note:   fmt.Sprintf("credit assessment: grade %s, %s", result.Grade, result.Recommendation),
	})
	app.UpdatedAt = now
	if err := s.repo.SaveApplication(app); err != nil {
		return domain.Application{}, err
	}
	s.logger.Info(fmt.Sprintf("assessed application %s: %s", id, result.Recommendation),
		zap.String("op", "application.Assess"),
		zap.String("grade", string(result.Grade)),
		zap.Float64("dti", result.DebtToIncome),
	)
	return app, nil
}

// MonthlyInstallment quotes the application's installment converted to a
// monthly amount.
func (s *Service) MonthlyInstallment(app domain.Application) (float64, error) {
	product, ok := s.products.Find(app.Product)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProduct, app.Product)
	}
	in := product.Input(app.Principal, app.TermMonths, app.Frequency)
	quote, err := loans.CalculateInstallment(in)
	if err != nil {
		return 0, err
	}
	perMonth, err := loans.InstallmentsPerMonth(in.Frequency)
	if err != nil {
		return 0, err
	}
	return quote.Installment * float64(perMonth), nil
}

// MarkDisbursed links an approved application to the loan created from it.
func (s *Service) MarkDisbursed(id, loanID, actor string) (domain.Application, error) {
	app, err := s.repo.Application(id)
	if err != nil {
		return domain.Application{}, err
	}
	if app.Status != domain.StatusApproved {
		return domain.Application{}, fmt.Errorf("%w: only approved applications can be disbursed, got %s", ErrInvalidTransition, app.Status)
	}
	if app.LoanID != "" {
		return domain.Application{}, fmt.Errorf("%w: loan %s", ErrAlreadyDisbursed, app.LoanID)
	}
	now := s.now()
	app.LoanID = loanID
	app.Timeline = append(app.Timeline, domain.TimelineEntry{At: now, Status: app.Status, Actor: actorOr(actor, "accountant"), Note: "disbursed as loan " + loanID})
	app.UpdatedAt = now
	if err := s.repo.SaveApplication(app); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// Get returns one application.
func (s *Service) Get(id string) (domain.Application, error) {
	return s.repo.Application(id)
}

// Filter narrows List results. Search matches the ID, borrower, product or
// purpose, ignoring case.
type Filter struct {
	Status domain.ApplicationStatus
	Search string
}

// List returns applications matching filter, newest first.
func (s *Service) List(filter Filter) ([]domain.Application, error) {
	all, err := s.repo.Applications()
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []domain.Application
	for _, app := range all {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if search != "" && !matches(app, search) {
			continue
		}
		out = append(out, app)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func matches(app domain.Application, search string) bool {
	for _, field := range []string{app.ID, app.BorrowerID, app.Product, app.Purpose} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (s *Service) transition(id string, to domain.ApplicationStatus, actor, note, op string, mutate func(*domain.Application) error) (domain.Application, error) {
	app, err := s.repo.Application(id)
	if err != nil {
		return domain.Application{}, err
	}
	from := app.Status
	if !CanTransition(from, to) {
		s.logger.Warn("rejected status change",
			zap.String("op", op),
			zap.String("id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return domain.Application{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if mutate != nil {
		if err := mutate(&app); err != nil {
			return domain.Application{}, err
		}
	}

	now := s.now()
	app.Status = to
	app.Timeline = append(app.Timeline, domain.TimelineEntry{At: now, Status: to, Actor: actor, Note: note})
	app.UpdatedAt = now
	if err := s.repo.SaveApplication(app); err != nil {
		return domain.Application{}, err
	}
	s.logger.Info(fmt.Sprintf("application %s moved from %s to %s", id, from, to),
		zap.String("op", op),
		zap.String("actor", actor),
	)
	return app, nil
}

func actorOr(actor, fallback string) string {
	if strings.TrimSpace(actor) == "" {
		return fallback
	}
	return actor
}

func noteOr(note, fallback string) string {
	if strings.TrimSpace(note) == "" {
		return fallback
	}
	return note
}
