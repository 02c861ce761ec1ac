package installments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaflow/vendaflow/internal/payment"
	"github.com/vendaflow/vendaflow/internal/shared"
)

var now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type memoryRepo struct {
	installments map[int64]*Installment
	payments     []Payment

	failInsertPayment bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{installments: make(map[int64]*Installment)}
}

func (m *memoryRepo) add(i Installment) {
	cp := i
	m.installments[i.ID] = &cp
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := make(map[int64]Installment, len(m.installments))
	for id, i := range m.installments {
		before[id] = *i
	}
	paymentsLen := len(m.payments)

	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		for id, i := range before {
			cp := i
			m.installments[id] = &cp
		}
		m.payments = m.payments[:paymentsLen]
		return err
	}
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Installment, error) {
	i, ok := m.installments[id]
	if !ok {
		return nil, fmt.Errorf("%w: installment %d", shared.ErrNotFound, id)
	}
	cp := *i
	return &cp, nil
}

func (m *memoryRepo) List(_ context.Context, req ListRequest, asOf time.Time) ([]Installment, error) {
	var out []Installment
	for _, i := range m.installments {
		if req.SaleID != 0 && i.SaleID != req.SaleID {
			continue
		}
		if req.Status != "" && EffectiveStatus(*i, asOf) != req.Status {
			continue
		}
		out = append(out, *i)
	}
	return out, nil
}

func (m *memoryRepo) ListPayments(_ context.Context, installmentID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		if p.InstallmentID == installmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) Summary(_ context.Context, asOf time.Time) (*Summary, error) {
	var s Summary
	weekEnd := asOf.Add(7 * 24 * time.Hour)
	for _, i := range m.installments {
		switch EffectiveStatus(*i, asOf) {
		case StatusPending, StatusPartial:
			s.PendingCount++
			s.PendingTotal += i.Balance()
			if i.DueDate.Before(weekEnd) {
				s.DueThisWeekCount++
				s.DueThisWeekTotal += i.Balance()
			}
		case StatusOverdue:
			s.OverdueCount++
			s.OverdueTotal += i.Balance()
		}
	}
	return &s, nil
}

func (m *memoryRepo) MarkOverdue(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for _, i := range m.installments {
		if (i.Status == StatusPending || i.Status == StatusPartial) && dayOf(i.DueDate).Before(dayOf(asOf)) {
			i.Status = StatusOverdue
			n++
		}
	}
	return n, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (*Installment, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTx) SetPaid(_ context.Context, id int64, paidAmount float64, status Status, method payment.Method) error {
	i, ok := t.repo.installments[id]
	if !ok {
		return fmt.Errorf("%w: installment %d", shared.ErrNotFound, id)
	}
	i.PaidAmount = paidAmount
	i.Status = status
	i.PaymentMethod = method
	return nil
}

func (t *memoryTx) InsertPayment(_ context.Context, p Payment) (int64, error) {
	if t.repo.failInsertPayment {
		return 0, errors.New("connection reset")
	}
	id := int64(len(t.repo.payments) + 1)
	p.ID = id
	t.repo.payments = append(t.repo.payments, p)
	return id, nil
}

type recordedEvents struct {
	paymentIDs []int64
}

func (e *recordedEvents) PaymentRecorded(_ context.Context, installmentID int64) {
	e.paymentIDs = append(e.paymentIDs, installmentID)
}

func clock() time.Time { return now }

func TestEffectiveStatus(t *testing.T) {
	future := now.Add(48 * time.Hour)
	past := now.Add(-48 * time.Hour)

	cases := []struct {
		name string
		inst Installment
		want Status
	}{
		{"pending before due date", Installment{Status: StatusPending, Amount: 100, DueDate: future}, StatusPending},
		{"open past due is overdue", Installment{Status: StatusPending, Amount: 100, DueDate: past}, StatusOverdue},
		{"due earlier today stays pending", Installment{Status: StatusPending, Amount: 100, DueDate: now.Add(-time.Hour)}, StatusPending},
		{"partial before due date", Installment{Status: StatusPartial, Amount: 100, PaidAmount: 60, DueDate: future}, StatusPartial},
		{"partial due earlier today stays partial", Installment{Status: StatusPartial, Amount: 100, PaidAmount: 60, DueDate: now.Add(-time.Hour)}, StatusPartial},
		{"partial past due is overdue", Installment{Status: StatusPartial, Amount: 100, PaidAmount: 60, DueDate: past}, StatusOverdue},
		{"paid stays paid past due", Installment{Status: StatusPaid, Amount: 100, PaidAmount: 100, DueDate: past}, StatusPaid},
		{"cancelled stays cancelled", Installment{Status: StatusCancelled, Amount: 100, DueDate: past}, StatusCancelled},
		{"stored overdue before due date recovers to pending", Installment{Status: StatusOverdue, Amount: 100, DueDate: future}, StatusPending},
		{"stored status never trusted for partial", Installment{Status: StatusPending, Amount: 100, PaidAmount: 30, DueDate: future}, StatusPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveStatus(tc.inst, now))
		})
	}
}

func TestApplyPaymentPartial(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, SaleID: 10, Sequence: 1, Amount: 100, Status: StatusPending, DueDate: now.Add(72 * time.Hour)})
	events := &recordedEvents{}
	svc := NewService(repo, events, clock)

	inst, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 40, Method: payment.MethodPix})
	require.NoError(t, err)
	assert.Equal(t, 40.0, inst.PaidAmount)
	assert.Equal(t, StatusPartial, inst.Status)
	assert.Equal(t, payment.MethodPix, inst.PaymentMethod)
	assert.Equal(t, 60.0, inst.Balance())

	require.Len(t, repo.payments, 1)
	assert.Equal(t, 40.0, repo.payments[0].Amount)
	assert.Equal(t, payment.MethodPix, repo.payments[0].Method)
	assert.Equal(t, []int64{1}, events.paymentIDs)
}

func TestApplyPaymentSettles(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, SaleID: 10, Sequence: 1, Amount: 100, PaidAmount: 60, Status: StatusPending, DueDate: now.Add(-time.Hour)})
	svc := NewService(repo, nil, clock)

	inst, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 40, Method: payment.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, inst.Status)
	assert.Equal(t, 100.0, inst.PaidAmount)
	assert.Equal(t, payment.MethodCash, inst.PaymentMethod)
}

func TestApplyPaymentOverpaymentRefused(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, SaleID: 10, Sequence: 1, Amount: 100, PaidAmount: 80, Status: StatusPending, DueDate: now.Add(time.Hour)})
	svc := NewService(repo, nil, clock)

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 25, Method: payment.MethodCash})
	require.ErrorIs(t, err, shared.ErrOverpayment)

	got, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.PaidAmount)
	assert.Empty(t, repo.payments)
}

func TestApplyPaymentOnPaidRefused(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, SaleID: 10, Sequence: 1, Amount: 100, PaidAmount: 100, Status: StatusPaid, DueDate: now})
	svc := NewService(repo, nil, clock)

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 0.01, Method: payment.MethodPix})
	require.ErrorIs(t, err, shared.ErrOverpayment)
}

func TestApplyPaymentOnCancelledRefused(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, SaleID: 10, Sequence: 1, Amount: 100, Status: StatusCancelled, DueDate: now})
	svc := NewService(repo, nil, clock)

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 10, Method: payment.MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplyPaymentValidatesRequest(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, clock)

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 0, Method: payment.MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 10, Method: payment.Method("voucher")})
	require.ErrorIs(t, err, shared.ErrValidation)

	// installments are not paid with more installments
	_, err = svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 10, Method: payment.MethodInstallment})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplyPaymentRollsBackOnEventFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, SaleID: 10, Sequence: 1, Amount: 100, Status: StatusPending, DueDate: now.Add(time.Hour)})
	repo.failInsertPayment = true
	events := &recordedEvents{}
	svc := NewService(repo, events, clock)

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{InstallmentID: 1, Amount: 40, Method: payment.MethodCard})
	require.ErrorIs(t, err, shared.ErrPersistence)

	got, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.PaidAmount)
	assert.Empty(t, events.paymentIDs)
}

func TestGetDerivesStatus(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, SaleID: 10, Sequence: 1, Amount: 100, Status: StatusPending, DueDate: now.Add(-24 * time.Hour)})
	svc := NewService(repo, nil, clock)

	got, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, got.Status)

	// stored row untouched
	assert.Equal(t, StatusPending, repo.installments[1].Status)
}

func TestSummaryUsesBalances(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, Amount: 100, PaidAmount: 40, Status: StatusPending, DueDate: now.Add(24 * time.Hour)})
	repo.add(Installment{ID: 2, Amount: 50, Status: StatusPending, DueDate: now.Add(-24 * time.Hour)})
	repo.add(Installment{ID: 3, Amount: 80, PaidAmount: 80, Status: StatusPaid, DueDate: now})
	svc := NewService(repo, nil, clock)

	s, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.PendingCount)
	assert.Equal(t, 60.0, s.PendingTotal)
	assert.Equal(t, 1, s.OverdueCount)
	assert.Equal(t, 50.0, s.OverdueTotal)
	assert.Equal(t, 1, s.DueThisWeekCount)
	assert.Equal(t, 60.0, s.DueThisWeekTotal)
}

func TestRefreshStatuses(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Installment{ID: 1, Amount: 100, Status: StatusPending, DueDate: now.Add(-24 * time.Hour)})
	repo.add(Installment{ID: 2, Amount: 100, Status: StatusPending, DueDate: now.Add(time.Hour)})
	// due earlier today, not overdue until tomorrow
	repo.add(Installment{ID: 3, Amount: 100, Status: StatusPending, DueDate: now.Add(-time.Hour)})
	svc := NewService(repo, nil, clock)

	n, err := svc.RefreshStatuses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, StatusOverdue, repo.installments[1].Status)
	assert.Equal(t, StatusPending, repo.installments[2].Status)
	assert.Equal(t, StatusPending, repo.installments[3].Status)
}
