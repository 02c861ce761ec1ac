package sales

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendaflow/vendaflow/internal/installments"
	"github.com/vendaflow/vendaflow/internal/inventory"
	"github.com/vendaflow/vendaflow/internal/payment"
	"github.com/vendaflow/vendaflow/internal/shared"
)

var now = time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type memoryStore struct {
	products     map[int64]*inventory.Product
	sales        map[int64]*Sale
	items        []SaleItem
	movements    []inventory.Movement
	installments []installments.Installment
	nextID       int64

	failInsertInstallment bool
	failInsertMovement    bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products: make(map[int64]*inventory.Product),
		sales:    make(map[int64]*Sale),
		nextID:   1,
	}
}

func (m *memoryStore) addProduct(id int64, name string, price float64, quantity int) {
	m.products[id] = &inventory.Product{ID: id, Name: name, SalePrice: price, Quantity: quantity}
}

func (m *memoryStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryStore) GetProduct(_ context.Context, id int64) (*inventory.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	productsBefore := make(map[int64]inventory.Product, len(m.products))
	for id, p := range m.products {
		productsBefore[id] = *p
	}
	salesBefore := make(map[int64]Sale, len(m.sales))
	for id, s := range m.sales {
		salesBefore[id] = *s
	}
	instBefore := make([]installments.Installment, len(m.installments))
	copy(instBefore, m.installments)
	itemsLen, movementsLen, nextID := len(m.items), len(m.movements), m.nextID

	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		m.products = make(map[int64]*inventory.Product, len(productsBefore))
		for id, p := range productsBefore {
			cp := p
			m.products[id] = &cp
		}
		m.sales = make(map[int64]*Sale, len(salesBefore))
		for id, s := range salesBefore {
			cp := s
			m.sales[id] = &cp
		}
		m.installments = instBefore
		m.items = m.items[:itemsLen]
		m.movements = m.movements[:movementsLen]
		m.nextID = nextID
		return err
	}
	return nil
}

func (m *memoryStore) Get(_ context.Context, id int64) (*Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStore) ListItems(_ context.Context, saleID int64) ([]SaleItem, error) {
	var out []SaleItem
	for _, item := range m.items {
		if item.SaleID == saleID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryStore) List(_ context.Context, req ListSalesRequest) ([]Sale, error) {
	var out []Sale
	for _, s := range m.sales {
		if req.Status != "" && s.Status != req.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) InsertSale(_ context.Context, s Sale) (int64, error) {
	id := t.store.id()
	s.ID = id
	t.store.sales[id] = &s
	return id, nil
}

func (t *memoryTx) InsertSaleItem(_ context.Context, item SaleItem) (int64, error) {
	id := t.store.id()
	item.ID = id
	t.store.items = append(t.store.items, item)
	return id, nil
}

func (t *memoryTx) DecrementProductStock(_ context.Context, productID int64, quantity int) (int, int, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return 0, 0, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	if p.Quantity < quantity {
		return 0, 0, fmt.Errorf("%w: product %q has %d units available, requested %d",
			shared.ErrInsufficientStock, p.Name, p.Quantity, quantity)
	}
	before := p.Quantity
	p.Quantity -= quantity
	return before, p.Quantity, nil
}

func (t *memoryTx) IncrementProductStock(_ context.Context, productID int64, quantity int) (int, int, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return 0, 0, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	before := p.Quantity
	p.Quantity += quantity
	return before, p.Quantity, nil
}

func (t *memoryTx) InsertMovement(_ context.Context, m inventory.Movement) (int64, error) {
	if t.store.failInsertMovement {
		return 0, errors.New("connection reset")
	}
	id := t.store.id()
	m.ID = id
	t.store.movements = append(t.store.movements, m)
	return id, nil
}

func (t *memoryTx) InsertInstallment(_ context.Context, inst installments.Installment) (int64, error) {
	if t.store.failInsertInstallment {
		return 0, errors.New("connection reset")
	}
	id := t.store.id()
	inst.ID = id
	t.store.installments = append(t.store.installments, inst)
	return id, nil
}

func (t *memoryTx) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	return t.store.Get(ctx, id)
}

func (t *memoryTx) ListItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	return t.store.ListItems(ctx, saleID)
}

func (t *memoryTx) SetSaleStatus(_ context.Context, id int64, status SaleStatus, cancelledAt *time.Time) error {
	s, ok := t.store.sales[id]
	if !ok {
		return fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	s.Status = status
	s.CancelledAt = cancelledAt
	return nil
}

func (t *memoryTx) CountSettledInstallments(_ context.Context, saleID int64) (int, error) {
	var n int
	for _, inst := range t.store.installments {
		if inst.SaleID == saleID && (inst.Status == installments.StatusPaid || inst.PaidAmount > 0) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) CancelOpenInstallments(_ context.Context, saleID int64) (int64, error) {
	var n int64
	for i := range t.store.installments {
		inst := &t.store.installments[i]
		if inst.SaleID == saleID && !inst.Status.Terminal() {
			inst.Status = installments.StatusCancelled
			n++
		}
	}
	return n, nil
}

type recordedEvents struct {
	committed []int64
	cancelled []int64
}

func (e *recordedEvents) SaleCommitted(_ context.Context, saleID int64) {
	e.committed = append(e.committed, saleID)
}

func (e *recordedEvents) SaleCancelled(_ context.Context, saleID int64) {
	e.cancelled = append(e.cancelled, saleID)
}

func newTestService(store *memoryStore) (*Service, *recordedEvents) {
	events := &recordedEvents{}
	svc := NewService(store, store, events, clock)
	svc.newRef = func() string { return "ref-test" }
	return svc, events
}

func TestCommitCashSale(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Fan", 150, 10)
	svc, events := newTestService(store)

	committed, err := svc.Commit(context.Background(), CommitSaleRequest{
		Items:  []CommitItemRequest{{ProductID: 1, Quantity: 3}},
		Method: payment.MethodCash,
	})
	require.NoError(t, err)

	assert.Equal(t, 450.0, committed.Sale.Total)
	assert.Equal(t, SaleStatusCompleted, committed.Sale.Status)
	assert.Equal(t, "ref-test", committed.Sale.Reference)
	assert.Empty(t, committed.Installments)

	assert.Equal(t, 7, store.products[1].Quantity)
	require.Len(t, store.movements, 1)
	mv := store.movements[0]
	assert.Equal(t, inventory.MovementTypeSale, mv.Type)
	assert.Equal(t, -3, mv.QuantityChange)
	assert.Equal(t, 10, mv.QuantityBefore)
	assert.Equal(t, 7, mv.QuantityAfter)
	assert.Equal(t, "ref-test", mv.ReferenceID)

	assert.Equal(t, []int64{committed.Sale.ID}, events.committed)
}

func TestCommitMergesDuplicateLines(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Fan", 150, 10)
	svc, _ := newTestService(store)

	committed, err := svc.Commit(context.Background(), CommitSaleRequest{
		Items: []CommitItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 1, Quantity: 3},
		},
		Method: payment.MethodCash,
	})
	require.NoError(t, err)
	require.Len(t, committed.Items, 1)
	assert.Equal(t, 5, committed.Items[0].Quantity)
	assert.Equal(t, 5, store.products[1].Quantity)
}

func TestCommitInstallmentSale(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Stove", 100, 5)
	svc, _ := newTestService(store)
	customerID := int64(7)

	committed, err := svc.Commit(context.Background(), CommitSaleRequest{
		CustomerID:       &customerID,
		Items:            []CommitItemRequest{{ProductID: 1, Quantity: 1}},
		Method:           payment.MethodInstallment,
		InstallmentCount: 3,
	})
	require.NoError(t, err)

	require.Len(t, committed.Installments, 3)
	assert.Equal(t, 33.33, committed.Installments[0].Amount)
	assert.Equal(t, 33.33, committed.Installments[1].Amount)
	assert.Equal(t, 33.34, committed.Installments[2].Amount)
	for i, inst := range committed.Installments {
		assert.Equal(t, i+1, inst.Sequence)
		assert.Equal(t, now.Add(time.Duration(i+1)*payment.InstallmentDueInterval), inst.DueDate)
		assert.Equal(t, installments.StatusPending, inst.Status)
		require.NotNil(t, inst.CustomerID)
		assert.Equal(t, customerID, *inst.CustomerID)
	}
	assert.Equal(t, 3, committed.Sale.InstallmentCount)
}

func TestCommitInstallmentRequiresCustomer(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Stove", 100, 5)
	svc, _ := newTestService(store)

	_, err := svc.Commit(context.Background(), CommitSaleRequest{
		Items:            []CommitItemRequest{{ProductID: 1, Quantity: 1}},
		Method:           payment.MethodInstallment,
		InstallmentCount: 3,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCommitRejectsInstallmentCountOnCash(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Fan", 150, 10)
	svc, _ := newTestService(store)

	_, err := svc.Commit(context.Background(), CommitSaleRequest{
		Items:            []CommitItemRequest{{ProductID: 1, Quantity: 1}},
		Method:           payment.MethodCash,
		InstallmentCount: 2,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCommitInsufficientStock(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Fan", 150, 2)
	svc, events := newTestService(store)

	_, err := svc.Commit(context.Background(), CommitSaleRequest{
		Items:  []CommitItemRequest{{ProductID: 1, Quantity: 3}},
		Method: payment.MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	assert.Equal(t, 2, store.products[1].Quantity)
	assert.Empty(t, store.sales)
	assert.Empty(t, store.movements)
	assert.Empty(t, events.committed)
}

func TestCommitWithDiscount(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Fan", 150, 10)
	svc, _ := newTestService(store)
	received := 130.0

	committed, err := svc.Commit(context.Background(), CommitSaleRequest{
		Items:                []CommitItemRequest{{ProductID: 1, Quantity: 1}},
		Method:               payment.MethodCard,
		ActualAmountReceived: &received,
	})
	require.NoError(t, err)
	assert.Equal(t, 150.0, committed.Sale.Total)
	assert.Equal(t, 130.0, committed.Sale.AmountReceived())
	assert.Equal(t, 20.0, committed.Sale.Discount())
}

func TestCommitRollsBackWhenInstallmentWriteFails(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Stove", 100, 5)
	store.failInsertInstallment = true
	svc, events := newTestService(store)
	customerID := int64(7)

	_, err := svc.Commit(context.Background(), CommitSaleRequest{
		CustomerID:       &customerID,
		Items:            []CommitItemRequest{{ProductID: 1, Quantity: 2}},
		Method:           payment.MethodInstallment,
		InstallmentCount: 3,
	})
	require.ErrorIs(t, err, shared.ErrPersistence)

	// nothing from the failed commit survives
	assert.Equal(t, 5, store.products[1].Quantity)
	assert.Empty(t, store.sales)
	assert.Empty(t, store.items)
	assert.Empty(t, store.movements)
	assert.Empty(t, store.installments)
	assert.Empty(t, events.committed)
}

func TestCancelRestocksAndCancelsInstallments(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Stove", 100, 5)
	svc, events := newTestService(store)
	customerID := int64(7)

	committed, err := svc.Commit(context.Background(), CommitSaleRequest{
		CustomerID:       &customerID,
		Items:            []CommitItemRequest{{ProductID: 1, Quantity: 2}},
		Method:           payment.MethodInstallment,
		InstallmentCount: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.products[1].Quantity)

	cancelled, err := svc.Cancel(context.Background(), committed.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, SaleStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, 5, store.products[1].Quantity)
	for _, inst := range store.installments {
		assert.Equal(t, installments.StatusCancelled, inst.Status)
	}

	// restock movement carries the sale reference
	restock := store.movements[len(store.movements)-1]
	assert.Equal(t, inventory.MovementTypeAdjust, restock.Type)
	assert.Equal(t, 2, restock.QuantityChange)
	assert.Equal(t, committed.Sale.Reference, restock.ReferenceID)

	assert.Equal(t, []int64{committed.Sale.ID}, events.cancelled)
}

func TestCancelBlockedByCollectedPayments(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Stove", 100, 5)
	svc, _ := newTestService(store)
	customerID := int64(7)

	committed, err := svc.Commit(context.Background(), CommitSaleRequest{
		CustomerID:       &customerID,
		Items:            []CommitItemRequest{{ProductID: 1, Quantity: 1}},
		Method:           payment.MethodInstallment,
		InstallmentCount: 2,
	})
	require.NoError(t, err)

	store.installments[0].PaidAmount = 10

	_, err = svc.Cancel(context.Background(), committed.Sale.ID)
	require.ErrorIs(t, err, shared.ErrValidation)

	got, err := svc.Get(context.Background(), committed.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, SaleStatusCompleted, got.Sale.Status)
	assert.Equal(t, 4, store.products[1].Quantity)
}

func TestCancelTwiceRefused(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "Fan", 150, 10)
	svc, _ := newTestService(store)

	committed, err := svc.Commit(context.Background(), CommitSaleRequest{
		Items:  []CommitItemRequest{{ProductID: 1, Quantity: 1}},
		Method: payment.MethodCash,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), committed.Sale.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), committed.Sale.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, 10, store.products[1].Quantity)
}

func TestCommitEmptySale(t *testing.T) {
	svc, _ := newTestService(newMemoryStore())
	_, err := svc.Commit(context.Background(), CommitSaleRequest{Method: payment.MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)
}
