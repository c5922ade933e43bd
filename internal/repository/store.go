// Package repository holds the in-process store and the cache backends.
package repository

import (
	"errors"
	"sort"
	"sync"

	"github.com/iwvelando/microloan/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is an in-memory, concurrency-safe record store. Writes are
// last-write-wins and nothing survives a restart.
type Store struct {
	mu           sync.RWMutex
	borrowers    map[string]domain.Borrower
	loans        map[string]domain.Loan
	payments     map[string]domain.Payment
	applications map[string]domain.Application
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops every record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.borrowers = make(map[string]domain.Borrower)
	s.loans = make(map[string]domain.Loan)
	s.payments = make(map[string]domain.Payment)
	s.applications = make(map[string]domain.Application)
}

// SaveBorrower inserts or replaces a borrower.
func (s *Store) SaveBorrower(b domain.Borrower) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.borrowers[b.ID] = b
	return nil
}

// Borrower fetches a borrower by ID.
func (s *Store) Borrower(id string) (domain.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.borrowers[id]
	if !ok {
		return domain.Borrower{}, ErrNotFound
	}
	return b, nil
}

// Borrowers lists borrowers ordered by creation time.
func (s *Store) Borrowers() ([]domain.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Borrower, 0, len(s.borrowers))
	for _, b := range s.borrowers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// SaveLoan inserts or replaces a loan.
func (s *Store) SaveLoan(l domain.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[l.ID] = cloneLoan(l)
	return nil
}

// Loan fetches a loan by ID.
func (s *Store) Loan(id string) (domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loans[id]
	if !ok {
		return domain.Loan{}, ErrNotFound
	}
	return cloneLoan(l), nil
}

// Loans lists loans ordered by disbursement date.
func (s *Store) Loans() ([]domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Loan, 0, len(s.loans))
	for _, l := range s.loans {
		out = append(out, cloneLoan(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisbursedAt.Equal(out[j].DisbursedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DisbursedAt.Before(out[j].DisbursedAt)
	})
	return out, nil
}

// SavePayment inserts or replaces a payment.
func (s *Store) SavePayment(p domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
	return nil
}

// Payment fetches a payment by ID.
func (s *Store) Payment(id string) (domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, ErrNotFound
	}
	return p, nil
}

// Payments lists payments ordered by payment time. An empty loanID lists all.
func (s *Store) Payments(loanID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if loanID == "" || p.LoanID == loanID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PaidAt.Before(out[j].PaidAt)
	})
	return out, nil
}

// SaveApplication inserts or replaces an application.
func (s *Store) SaveApplication(a domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[a.ID] = cloneApplication(a)
	return nil
}

// Application fetches an application by ID.
func (s *Store) Application(id string) (domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applications[id]
	if !ok {
		return domain.Application{}, ErrNotFound
	}
	return cloneApplication(a), nil
}

// Applications lists applications ordered by creation time.
func (s *Store) Applications() ([]domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Application, 0, len(s.applications))
	for _, a := range s.applications {
		out = append(out, cloneApplication(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneLoan(l domain.Loan) domain.Loan {
	l.Schedule = append(l.Schedule[:0:0], l.Schedule...)
	if l.NextDueDate != nil {
		next := *l.NextDueDate
		l.NextDueDate = &next
	}
	return l
}

func cloneApplication(a domain.Application) domain.Application {
	a.Timeline = append(a.Timeline[:0:0], a.Timeline...)
	a.RequiredActions = append(a.RequiredActions[:0:0], a.RequiredActions...)
	a.Messages = append(a.Messages[:0:0], a.Messages...)
	if a.Assessment != nil {
		assessment := *a.Assessment
		assessment.Reasons = append(assessment.Reasons[:0:0], assessment.Reasons...)
		a.Assessment = &assessment
	}
	return a
}
