package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/vendaflow/vendaflow/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, c Customer) (int64, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, error)
	Update(ctx context.Context, id int64, c Customer) error
}

// Service manages the customer directory.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a customer.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}

	customer := Customer{Name: name, Phone: strings.TrimSpace(req.Phone), Note: req.Note}
	id, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, shared.AsPersistence(fmt.Errorf("create customer: %w", err))
	}
	customer.ID = id
	return &customer, nil
}

// Get retrieves a customer by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, error) {
	req.Search = strings.TrimSpace(req.Search)
	return s.repo.List(ctx, req)
}

// Update edits customer contact details.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}

	customer := Customer{Name: name, Phone: strings.TrimSpace(req.Phone), Note: req.Note}
	if err := s.repo.Update(ctx, id, customer); err != nil {
		return nil, shared.AsPersistence(err)
	}
	return s.repo.Get(ctx, id)
}
