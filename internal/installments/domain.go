// Package installments tracks the receivable ledger created by installment
// sales. The stored status is a write-time cache; whether an open installment
// is pending, partial or overdue is re-derived from amounts and the due date
// at read time.
package installments

import (
	"time"

	"github.com/vendaflow/vendaflow/internal/payment"
)

// Status enumerates installment states.
type Status string

const (
	// StatusPending is an untouched installment not yet past due.
	StatusPending Status = "pending"
	// StatusPartial carries a payment below the face value, not yet past due.
	StatusPartial Status = "partial"
	// StatusPaid is fully settled. Terminal.
	StatusPaid Status = "paid"
	// StatusOverdue is an unsettled installment past its due date.
	StatusOverdue Status = "overdue"
	// StatusCancelled belongs to a cancelled sale. Terminal.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Installment is one scheduled payment of an installment sale. PaymentMethod
// records the method of the last payment applied.
type Installment struct {
	ID            int64          `json:"id" db:"id"`
	SaleID        int64          `json:"sale_id" db:"sale_id"`
	CustomerID    *int64         `json:"customer_id,omitempty" db:"customer_id"`
	Sequence      int            `json:"sequence" db:"sequence"`
	Amount        float64        `json:"amount" db:"amount"`
	PaidAmount    float64        `json:"paid_amount" db:"paid_amount"`
	PaymentMethod payment.Method `json:"payment_method,omitempty" db:"payment_method"`
	DueDate       time.Time      `json:"due_date" db:"due_date"`
	Status        Status         `json:"status" db:"status"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Balance returns the unpaid remainder.
func (i Installment) Balance() float64 {
	return i.Amount - i.PaidAmount
}

// EffectiveStatus derives the status of an installment as observed at asOf.
// Terminal statuses are returned as stored. Due dates compare at calendar day
// granularity: an installment due today is not yet overdue, one due yesterday
// is, partially paid or not.
func EffectiveStatus(i Installment, asOf time.Time) Status {
	if i.Status.Terminal() {
		return i.Status
	}
	switch {
	case i.PaidAmount < i.Amount && dayOf(i.DueDate).Before(dayOf(asOf)):
		return StatusOverdue
	case i.PaidAmount > 0:
		return StatusPartial
	default:
		return StatusPending
	}
}

// dayOf truncates a timestamp to its calendar date.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Payment is one recorded payment event against an installment.
type Payment struct {
	ID            int64          `json:"id" db:"id"`
	InstallmentID int64          `json:"installment_id" db:"installment_id"`
	Amount        float64        `json:"amount" db:"amount"`
	Method        payment.Method `json:"method" db:"method"`
	Note          string         `json:"note,omitempty" db:"note"`
	PaidAt        time.Time      `json:"paid_at" db:"paid_at"`
}

// ApplyPaymentRequest records a payment against an installment.
type ApplyPaymentRequest struct {
	InstallmentID int64          `json:"installment_id" validate:"required,gt=0"`
	Amount        float64        `json:"amount" validate:"required,gt=0"`
	Method        payment.Method `json:"method" validate:"required"`
	Note          string         `json:"note,omitempty" validate:"max=500"`
}

// ListRequest filters the ledger.
type ListRequest struct {
	SaleID     int64  `json:"sale_id,omitempty"`
	CustomerID int64  `json:"customer_id,omitempty"`
	Status     Status `json:"status,omitempty"`
	Limit      int    `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int    `json:"offset" validate:"gte=0"`
}

// Summary aggregates open installments for the dashboard. Totals are unpaid
// balances, not face amounts.
type Summary struct {
	PendingCount     int     `json:"pending_count"`
	PendingTotal     float64 `json:"pending_total"`
	OverdueCount     int     `json:"overdue_count"`
	OverdueTotal     float64 `json:"overdue_total"`
	DueThisWeekCount int     `json:"due_this_week_count"`
	DueThisWeekTotal float64 `json:"due_this_week_total"`
}
