// Package payment computes sale payment plans. Split amounts are carried as
// exact decimals so the per-installment values always sum back to the total.
package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendaflow/vendaflow/internal/shared"
)

// Method enumerates the accepted payment methods.
type Method string

const (
	MethodPix         Method = "pix"
	MethodCash        Method = "cash"
	MethodCard        Method = "card"
	MethodInstallment Method = "installment"
)

// Valid reports whether the method is one of the accepted values.
func (m Method) Valid() bool {
	switch m {
	case MethodPix, MethodCash, MethodCard, MethodInstallment:
		return true
	}
	return false
}

// InstallmentDueInterval is the spacing between consecutive due dates.
const InstallmentDueInterval = 30 * 24 * time.Hour

// MaxInstallments caps the plan length.
const MaxInstallments = 12

// ScheduledPayment is one future payment in a plan.
type ScheduledPayment struct {
	Sequence int       `json:"sequence"`
	Amount   float64   `json:"amount"`
	DueDate  time.Time `json:"due_date"`
}

// Plan is the full payment plan for a sale.
type Plan struct {
	Method         Method             `json:"method"`
	Total          float64            `json:"total"`
	AmountReceived float64            `json:"amount_received"`
	Discount       float64            `json:"discount"`
	Schedule       []ScheduledPayment `json:"schedule,omitempty"`
}

// Build computes the plan for a sale total. For pix, cash and card the plan is
// a single immediate payment of the received amount. For installment the
// received amount is split into count equal parts rounded down to the cent,
// with the last part absorbing the remainder, due every 30 days from
// reference.
//
// actualReceived is the net amount after processor fees, entered by the
// operator. It may accompany any method, must not exceed the total, and the
// difference is recorded as the discount.
func Build(method Method, total float64, actualReceived *float64, count int, reference time.Time) (*Plan, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, method)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", shared.ErrValidation)
	}

	received := total
	if actualReceived != nil {
		if *actualReceived <= 0 {
			return nil, fmt.Errorf("%w: amount received must be positive", shared.ErrValidation)
		}
		if *actualReceived > total {
			return nil, fmt.Errorf("%w: amount received %.2f exceeds total %.2f", shared.ErrValidation, *actualReceived, total)
		}
		received = *actualReceived
	}

	plan := &Plan{Method: method, Total: total, AmountReceived: received, Discount: total - received}
	if method != MethodInstallment {
		return plan, nil
	}

	if count < 1 || count > MaxInstallments {
		return nil, fmt.Errorf("%w: installment count must be between 1 and %d", shared.ErrValidation, MaxInstallments)
	}

	amounts := splitEven(received, count)
	plan.Schedule = make([]ScheduledPayment, count)
	for i, amount := range amounts {
		plan.Schedule[i] = ScheduledPayment{
			Sequence: i + 1,
			Amount:   amount,
			DueDate:  reference.Add(time.Duration(i+1) * InstallmentDueInterval),
		}
	}
	return plan, nil
}

// splitEven divides amount into count parts, each floored to the cent, with
// the remainder added to the last part. The parts sum to the amount exactly.
func splitEven(amount float64, count int) []float64 {
	total := decimal.NewFromFloat(amount).Round(2)
	part := total.Div(decimal.NewFromInt(int64(count))).RoundDown(2)

	out := make([]float64, count)
	running := decimal.Zero
	for i := 0; i < count-1; i++ {
		out[i], _ = part.Float64()
		running = running.Add(part)
	}
	last, _ := total.Sub(running).Float64()
	out[count-1] = last
	return out
}
