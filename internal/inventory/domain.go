package inventory

import (
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeAddition represents restocking.
	MovementTypeAddition MovementType = "addition"
	// MovementTypeSale represents stock consumed by a committed sale.
	MovementTypeSale MovementType = "sale"
	// MovementTypeAdjust indicates manual corrections and restocks from cancellations.
	MovementTypeAdjust MovementType = "adjustment"
)

// Product is a sellable item. Quantity is mutated only through audited movements.
type Product struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	SalePrice         float64   `json:"sale_price" db:"sale_price"`
	CostPrice         float64   `json:"cost_price" db:"cost_price"`
	Quantity          int       `json:"quantity" db:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold" db:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Movement is one append-only audit entry for a product quantity change.
// QuantityAfter = QuantityBefore + QuantityChange always holds.
type Movement struct {
	ID             int64        `json:"id" db:"id"`
	ProductID      int64        `json:"product_id" db:"product_id"`
	Type           MovementType `json:"movement_type" db:"movement_type"`
	QuantityChange int          `json:"quantity_change" db:"quantity_change"`
	QuantityBefore int          `json:"quantity_before" db:"quantity_before"`
	QuantityAfter  int          `json:"quantity_after" db:"quantity_after"`
	ReferenceID    string       `json:"reference_id,omitempty" db:"reference_id"`
	Note           string       `json:"note,omitempty" db:"note"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// CreateProductRequest registers a new product.
type CreateProductRequest struct {
	Name              string  `json:"name" validate:"required,max=200"`
	SalePrice         float64 `json:"sale_price" validate:"required,gt=0"`
	CostPrice         float64 `json:"cost_price" validate:"gte=0"`
	Quantity          int     `json:"quantity" validate:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
}

// AddStockRequest restocks a product.
type AddStockRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Note      string `json:"note,omitempty" validate:"max=500"`
}

// AdjustStockRequest applies a signed manual correction.
type AdjustStockRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Change    int    `json:"change" validate:"required"`
	Note      string `json:"note,omitempty" validate:"max=500"`
}

// ListMovementsRequest filters the movement trail.
type ListMovementsRequest struct {
	ProductID int64     `json:"product_id"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
	Limit     int       `json:"limit" validate:"gte=0,lte=1000"`
}
