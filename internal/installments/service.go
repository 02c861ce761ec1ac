package installments

import (
	"context"
	"fmt"
	"time"

	"github.com/vendaflow/vendaflow/internal/payment"
	"github.com/vendaflow/vendaflow/internal/shared"
)

// centEpsilon absorbs float accumulation noise in amount comparisons.
const centEpsilon = 0.005

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Installment, error)
	List(ctx context.Context, req ListRequest, asOf time.Time) ([]Installment, error)
	ListPayments(ctx context.Context, installmentID int64) ([]Payment, error)
	Summary(ctx context.Context, asOf time.Time) (*Summary, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// Events receives notifications after a payment commits.
type Events interface {
	PaymentRecorded(ctx context.Context, installmentID int64)
}

// Service manages the installment ledger.
type Service struct {
	repo   RepositoryPort
	events Events
	now    shared.Clock
}

// NewService builds Service. events may be nil.
func NewService(repo RepositoryPort, events Events, now shared.Clock) *Service {
	if now == nil {
		now = shared.SystemClock
	}
	return &Service{repo: repo, events: events, now: now}
}

// Get retrieves an installment with its status as of now.
func (s *Service) Get(ctx context.Context, id int64) (*Installment, error) {
	inst, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	inst.Status = EffectiveStatus(*inst, s.now())
	return inst, nil
}

// List returns installments matching the filter, statuses as of now.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Installment, error) {
	asOf := s.now()
	out, err := s.repo.List(ctx, req, asOf)
	if err != nil {
		return nil, shared.AsPersistence(err)
	}
	for i := range out {
		out[i].Status = EffectiveStatus(out[i], asOf)
	}
	return out, nil
}

// Payments returns the payment events recorded against an installment.
func (s *Service) Payments(ctx context.Context, installmentID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, installmentID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListPayments(ctx, installmentID)
	if err != nil {
		return nil, shared.AsPersistence(err)
	}
	return out, nil
}

// ApplyPayment records a payment against an open installment. The payment may
// not exceed the remaining balance; reaching the balance exactly settles the
// installment. The row stays locked for the duration so concurrent payments
// serialize against the same ceiling.
func (s *Service) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*Installment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	if !req.Method.Valid() || req.Method == payment.MethodInstallment {
		return nil, fmt.Errorf("%w: invalid payment method %q", shared.ErrValidation, req.Method)
	}

	var updated Installment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inst, err := tx.GetForUpdate(ctx, req.InstallmentID)
		if err != nil {
			return err
		}
		if inst.Status == StatusCancelled {
			return fmt.Errorf("%w: installment %d is cancelled", shared.ErrValidation, inst.ID)
		}

		newPaid := inst.PaidAmount + req.Amount
		if newPaid > inst.Amount+centEpsilon {
			return fmt.Errorf("%w: installment %d balance is %.2f, payment of %.2f refused",
				shared.ErrOverpayment, inst.ID, inst.Balance(), req.Amount)
		}

		status := StatusPartial
		if newPaid >= inst.Amount-centEpsilon {
			newPaid = inst.Amount
			status = StatusPaid
		}
		if err := tx.SetPaid(ctx, inst.ID, newPaid, status, req.Method); err != nil {
			return err
		}
		if _, err := tx.InsertPayment(ctx, Payment{
			InstallmentID: inst.ID,
			Amount:        req.Amount,
			Method:        req.Method,
			Note:          req.Note,
			PaidAt:        s.now(),
		}); err != nil {
			return err
		}

		updated = *inst
		updated.PaidAmount = newPaid
		updated.PaymentMethod = req.Method
		updated.Status = status
		return nil
	})
	if err != nil {
		return nil, shared.AsPersistence(err)
	}

	if s.events != nil {
		s.events.PaymentRecorded(ctx, updated.ID)
	}
	updated.Status = EffectiveStatus(updated, s.now())
	return &updated, nil
}

// Summary aggregates open installment balances as of now.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	out, err := s.repo.Summary(ctx, s.now())
	if err != nil {
		return nil, shared.AsPersistence(err)
	}
	return out, nil
}

// RefreshStatuses persists the overdue status for open past-due installments.
// Called from the periodic worker.
func (s *Service) RefreshStatuses(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, shared.AsPersistence(err)
	}
	return n, nil
}
