package sales

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vendaflow/vendaflow/internal/cart"
	"github.com/vendaflow/vendaflow/internal/installments"
	"github.com/vendaflow/vendaflow/internal/inventory"
	"github.com/vendaflow/vendaflow/internal/payment"
	"github.com/vendaflow/vendaflow/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Sale, error)
	ListItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	List(ctx context.Context, req ListSalesRequest) ([]Sale, error)
}

// ProductCatalog supplies product snapshots for cart building.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*inventory.Product, error)
}

// Events receives notifications after a sale transaction commits.
type Events interface {
	SaleCommitted(ctx context.Context, saleID int64)
	SaleCancelled(ctx context.Context, saleID int64)
}

// Service commits and cancels sale transactions. A commit is all or nothing:
// the sale, its items, the stock decrements with their movements and the
// installment rows land in one transaction or none of them do.
type Service struct {
	repo     RepositoryPort
	products ProductCatalog
	events   Events
	now      shared.Clock
	newRef   func() string
}

// NewService builds Service. events may be nil.
func NewService(repo RepositoryPort, products ProductCatalog, events Events, now shared.Clock) *Service {
	if now == nil {
		now = shared.SystemClock
	}
	return &Service{repo: repo, products: products, events: events, now: now, newRef: uuid.NewString}
}

// Commit validates the requested lines against current stock, builds the
// payment plan and persists the whole sale atomically. Stock is re-checked
// inside the transaction with a conditional decrement, so the cart snapshot
// going stale can only surface as a clean refusal, never as oversell.
func (s *Service) Commit(ctx context.Context, req CommitSaleRequest) (*CommittedSale, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: sale requires at least one item", shared.ErrValidation)
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, req.Method)
	}
	if req.Method != payment.MethodInstallment && req.InstallmentCount > 0 {
		return nil, fmt.Errorf("%w: installment count is only valid for installment sales", shared.ErrValidation)
	}
	if req.Method == payment.MethodInstallment && req.CustomerID == nil {
		return nil, fmt.Errorf("%w: installment sales require a customer", shared.ErrValidation)
	}

	c := cart.New()
	c.SetCustomer(req.CustomerID)
	for _, item := range req.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		err = c.AddLine(cart.ProductSnapshot{
			ID:        product.ID,
			Name:      product.Name,
			UnitPrice: product.SalePrice,
			Available: product.Quantity,
		}, item.Quantity)
		if err != nil {
			return nil, err
		}
	}

	committedAt := s.now()
	plan, err := payment.Build(req.Method, c.Total(), req.ActualAmountReceived, req.InstallmentCount, committedAt)
	if err != nil {
		return nil, err
	}

	lines := c.Lines()
	// stable lock order under concurrent commits
	sort.Slice(lines, func(i, j int) bool { return lines[i].Product.ID < lines[j].Product.ID })

	reference := s.newRef()
	var result CommittedSale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale := Sale{
			Reference:            reference,
			CustomerID:           req.CustomerID,
			Method:               req.Method,
			Total:                plan.Total,
			ActualAmountReceived: req.ActualAmountReceived,
			InstallmentCount:     len(plan.Schedule),
			Status:               SaleStatusCompleted,
			CreatedAt:            committedAt,
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		items := make([]SaleItem, 0, len(lines))
		for _, line := range lines {
			before, after, err := tx.DecrementProductStock(ctx, line.Product.ID, line.Quantity)
			if err != nil {
				return err
			}

			item := SaleItem{
				SaleID:      saleID,
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				UnitPrice:   line.Product.UnitPrice,
				Quantity:    line.Quantity,
				Subtotal:    line.Subtotal(),
			}
			itemID, err := tx.InsertSaleItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			items = append(items, item)

			movement := inventory.Movement{
				ProductID:      line.Product.ID,
				Type:           inventory.MovementTypeSale,
				QuantityChange: -line.Quantity,
				QuantityBefore: before,
				QuantityAfter:  after,
				ReferenceID:    reference,
				CreatedAt:      committedAt,
			}
			if err := inventory.ValidateMovement(movement); err != nil {
				return err
			}
			if _, err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
		}

		var ledger []installments.Installment
		for _, scheduled := range plan.Schedule {
			inst := installments.Installment{
				SaleID:     saleID,
				CustomerID: req.CustomerID,
				Sequence:   scheduled.Sequence,
				Amount:     scheduled.Amount,
				DueDate:    scheduled.DueDate,
				Status:     installments.StatusPending,
				CreatedAt:  committedAt,
			}
			instID, err := tx.InsertInstallment(ctx, inst)
			if err != nil {
				return err
			}
			inst.ID = instID
			ledger = append(ledger, inst)
		}

		result = CommittedSale{Sale: sale, Items: items, Installments: ledger}
		return nil
	})
	if err != nil {
		return nil, shared.AsPersistence(err)
	}

	if s.events != nil {
		s.events.SaleCommitted(ctx, result.Sale.ID)
	}
	return &result, nil
}

// Cancel voids a completed sale: stock goes back with audit movements and the
// open installments are cancelled. Sales with any money already collected on
// their installments cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, saleID int64) (*Sale, error) {
	cancelledAt := s.now()
	var cancelled Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == SaleStatusCancelled {
			return fmt.Errorf("%w: sale %d is already cancelled", shared.ErrValidation, saleID)
		}

		settled, err := tx.CountSettledInstallments(ctx, saleID)
		if err != nil {
			return err
		}
		if settled > 0 {
			return fmt.Errorf("%w: sale %d has collected installment payments", shared.ErrValidation, saleID)
		}

		items, err := tx.ListItems(ctx, saleID)
		if err != nil {
			return err
		}
		for _, item := range items {
			before, after, err := tx.IncrementProductStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			movement := inventory.Movement{
				ProductID:      item.ProductID,
				Type:           inventory.MovementTypeAdjust,
				QuantityChange: item.Quantity,
				QuantityBefore: before,
				QuantityAfter:  after,
				ReferenceID:    sale.Reference,
				Note:           "sale cancelled",
				CreatedAt:      cancelledAt,
			}
			if err := inventory.ValidateMovement(movement); err != nil {
				return err
			}
			if _, err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
		}

		if _, err := tx.CancelOpenInstallments(ctx, saleID); err != nil {
			return err
		}
		if err := tx.SetSaleStatus(ctx, saleID, SaleStatusCancelled, &cancelledAt); err != nil {
			return err
		}

		cancelled = *sale
		cancelled.Status = SaleStatusCancelled
		cancelled.CancelledAt = &cancelledAt
		return nil
	})
	if err != nil {
		return nil, shared.AsPersistence(err)
	}

	if s.events != nil {
		s.events.SaleCancelled(ctx, saleID)
	}
	return &cancelled, nil
}

// Get retrieves a sale with its frozen lines.
func (s *Service) Get(ctx context.Context, id int64) (*CommittedSale, error) {
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, shared.AsPersistence(err)
	}
	return &CommittedSale{Sale: *sale, Items: items}, nil
}

// List returns the sale history.
func (s *Service) List(ctx context.Context, req ListSalesRequest) ([]Sale, error) {
	out, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.AsPersistence(err)
	}
	return out, nil
}
