package application

import "github.com/iwvelando/microloan/internal/domain"

// Repository is the storage the application service depends on.
//
//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks -source=interface.go Repository
type Repository interface {
	SaveApplication(a domain.Application) error
	Application(id string) (domain.Application, error)
	Applications() ([]domain.Application, error)
	Borrower(id string) (domain.Borrower, error)
}
