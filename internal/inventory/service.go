package inventory

import (
	"context"
	"fmt"

	"github.com/vendaflow/vendaflow/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	ListLowStock(ctx context.Context) ([]Product, error)
	ListMovements(ctx context.Context, req ListMovementsRequest) ([]Movement, error)
}

// Service is the stock ledger: the authoritative count of sellable units per
// product, mutated only through audited movements.
type Service struct {
	repo RepositoryPort
	now  shared.Clock
}

// NewService builds Service.
func NewService(repo RepositoryPort, now shared.Clock) *Service {
	if now == nil {
		now = shared.SystemClock
	}
	return &Service{repo: repo, now: now}
}

// CreateProduct registers a product. The insert and its opening movement share
// one transaction: a product either lands with its audit row or not at all.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if req.SalePrice <= 0 {
		return nil, fmt.Errorf("%w: sale price must be positive", shared.ErrValidation)
	}
	if req.CostPrice < 0 || req.CostPrice > req.SalePrice {
		return nil, fmt.Errorf("%w: cost price must be between zero and the sale price", shared.ErrValidation)
	}
	if req.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", shared.ErrValidation)
	}

	product := Product{
		Name:              req.Name,
		SalePrice:         req.SalePrice,
		CostPrice:         req.CostPrice,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateProduct(ctx, product)
		if err != nil {
			return err
		}
		product.ID = id

		if req.Quantity == 0 {
			return nil
		}
		_, err = tx.InsertMovement(ctx, Movement{
			ProductID:      id,
			Type:           MovementTypeAddition,
			QuantityChange: req.Quantity,
			QuantityBefore: 0,
			QuantityAfter:  req.Quantity,
			Note:           "opening stock",
			CreatedAt:      s.now(),
		})
		return err
	})
	if err != nil {
		return nil, shared.AsPersistence(fmt.Errorf("create product: %w", err))
	}
	return &product, nil
}

// AddStock restocks a product and appends an addition movement.
func (s *Service) AddStock(ctx context.Context, req AddStockRequest) (*Movement, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	}
	return s.applyChange(ctx, req.ProductID, req.Quantity, MovementTypeAddition, req.Note, "")
}

// AdjustStock applies a signed manual correction. The resulting quantity may
// not go negative.
func (s *Service) AdjustStock(ctx context.Context, req AdjustStockRequest) (*Movement, error) {
	if req.Change == 0 {
		return nil, fmt.Errorf("%w: change must be non-zero", shared.ErrValidation)
	}
	return s.applyChange(ctx, req.ProductID, req.Change, MovementTypeAdjust, req.Note, "")
}

// GetProduct retrieves a product by ID.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns products.
func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	return s.repo.ListProducts(ctx, limit, offset)
}

// ListLowStock returns products at or below their threshold.
func (s *Service) ListLowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

// ListMovements returns the audit trail.
func (s *Service) ListMovements(ctx context.Context, req ListMovementsRequest) ([]Movement, error) {
	return s.repo.ListMovements(ctx, req)
}

func (s *Service) applyChange(ctx context.Context, productID int64, change int, movementType MovementType, note, referenceID string) (*Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		after := product.Quantity + change
		if after < 0 {
			return fmt.Errorf("%w: product %q has %d units, adjustment of %d would go negative",
				shared.ErrInsufficientStock, product.Name, product.Quantity, change)
		}
		if err := tx.SetProductQuantity(ctx, productID, after); err != nil {
			return err
		}
		movement = Movement{
			ProductID:      productID,
			Type:           movementType,
			QuantityChange: change,
			QuantityBefore: product.Quantity,
			QuantityAfter:  after,
			ReferenceID:    referenceID,
			Note:           note,
			CreatedAt:      s.now(),
		}
		if err := ValidateMovement(movement); err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		return nil, shared.AsPersistence(err)
	}
	return &movement, nil
}

// ValidateMovement checks the movement arithmetic invariant before it is written.
func ValidateMovement(m Movement) error {
	if m.QuantityAfter != m.QuantityBefore+m.QuantityChange {
		return fmt.Errorf("%w: movement arithmetic broken: %d + %d != %d",
			shared.ErrValidation, m.QuantityBefore, m.QuantityChange, m.QuantityAfter)
	}
	if m.QuantityAfter < 0 {
		return fmt.Errorf("%w: movement would leave negative stock", shared.ErrValidation)
	}
	return nil
}
