package sales

import (
	"time"

	"github.com/vendaflow/vendaflow/internal/installments"
	"github.com/vendaflow/vendaflow/internal/payment"
)

// SaleStatus enumerates sale states.
type SaleStatus string

const (
	// SaleStatusCompleted is a committed sale.
	SaleStatusCompleted SaleStatus = "completed"
	// SaleStatusCancelled is a cancelled sale whose stock was returned.
	SaleStatusCancelled SaleStatus = "cancelled"
)

// Sale is one committed transaction. Reference is the external identifier
// stamped on stock movements and receipts.
type Sale struct {
	ID                   int64          `json:"id" db:"id"`
	Reference            string         `json:"reference" db:"reference"`
	CustomerID           *int64         `json:"customer_id,omitempty" db:"customer_id"`
	Method               payment.Method `json:"payment_method" db:"payment_method"`
	Total                float64        `json:"total" db:"total"`
	ActualAmountReceived *float64       `json:"actual_amount_received,omitempty" db:"actual_amount_received"`
	InstallmentCount     int            `json:"installment_count,omitempty" db:"installment_count"`
	Status               SaleStatus     `json:"status" db:"status"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	CancelledAt          *time.Time     `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// AmountReceived returns the money that actually changed hands: the override
// when one was given, otherwise the total.
func (s Sale) AmountReceived() float64 {
	if s.ActualAmountReceived != nil {
		return *s.ActualAmountReceived
	}
	return s.Total
}

// Discount returns the processor fee absorbed on the sale.
func (s Sale) Discount() float64 {
	return s.Total - s.AmountReceived()
}

// SaleItem is one product line frozen at commit time.
type SaleItem struct {
	ID          int64   `json:"id" db:"id"`
	SaleID      int64   `json:"sale_id" db:"sale_id"`
	ProductID   int64   `json:"product_id" db:"product_id"`
	ProductName string  `json:"product_name" db:"product_name"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	Quantity    int     `json:"quantity" db:"quantity"`
	Subtotal    float64 `json:"subtotal" db:"subtotal"`
}

// CommitItemRequest is one requested line of a sale.
type CommitItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// CommitSaleRequest commits a sale transaction.
type CommitSaleRequest struct {
	CustomerID           *int64              `json:"customer_id,omitempty"`
	Items                []CommitItemRequest `json:"items" validate:"required,min=1,dive"`
	Method               payment.Method      `json:"payment_method" validate:"required"`
	ActualAmountReceived *float64            `json:"actual_amount_received,omitempty"`
	InstallmentCount     int                 `json:"installment_count,omitempty" validate:"gte=0"`
}

// CommittedSale is the full commit result.
type CommittedSale struct {
	Sale         Sale                       `json:"sale"`
	Items        []SaleItem                 `json:"items"`
	Installments []installments.Installment `json:"installments,omitempty"`
}

// ListSalesRequest filters the sale history.
type ListSalesRequest struct {
	CustomerID int64      `json:"customer_id,omitempty"`
	Status     SaleStatus `json:"status,omitempty"`
	From       time.Time  `json:"from,omitempty"`
	To         time.Time  `json:"to,omitempty"`
	Limit      int        `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int        `json:"offset" validate:"gte=0"`
}
