package domain

import (
	"time"

	"github.com/iwvelando/microloan/internal/credit"
	"github.com/iwvelando/microloan/pkg/loans"
)

// ApplicationStatus is the workflow state of a loan application.
type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "draft"
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusPendingDocs ApplicationStatus = "pending_docs"
	StatusEscalated   ApplicationStatus = "escalated"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
)

// Terminal reports whether no further transitions are possible.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// TimelineEntry records one event in an application's history.
type TimelineEntry struct {
	At     time.Time         `json:"at"`
	Status ApplicationStatus `json:"status"`
	Actor  string            `json:"actor"`
	Note   string            `json:"note,omitempty"`
}

// RequiredAction is something the borrower must provide, usually a document.
type RequiredAction struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Done reports whether the action has been completed.
func (a RequiredAction) Done() bool {
	return a.CompletedAt != nil
}

// Message is a note exchanged between borrower and loan officer.
type Message struct {
	At     time.Time `json:"at"`
	Author string    `json:"author"`
	Body   string    `json:"body"`
}

// Application is a request for a loan moving through review.
type Application struct {
	ID              string            `json:"id"`
	BorrowerID      string            `json:"borrowerId"`
	Product         string            `json:"product"`
	Principal       float64           `json:"principal"`
	TermMonths      int               `json:"termMonths"`
	Frequency       loans.Frequency   `json:"frequency"`
	Purpose         string            `json:"purpose,omitempty"`
	Status          ApplicationStatus `json:"status"`
	Timeline        []TimelineEntry   `json:"timeline"`
	RequiredActions []RequiredAction  `json:"requiredActions,omitempty"`
	Messages        []Message         `json:"messages,omitempty"`
	Assessment      *credit.Result    `json:"assessment,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	LoanID          string            `json:"loanId,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// PendingActions returns the required actions not yet completed.
func (a Application) PendingActions() []RequiredAction {
	var pending []RequiredAction
	for _, action := range a.RequiredActions {
		if !action.Done() {
			pending = append(pending, action)
		}
	}
	return pending
}
