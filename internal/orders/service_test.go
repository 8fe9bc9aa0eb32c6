package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/khlang-erp/khlang-erp/internal/aggregation"
)

type memoryOrderRepo struct {
	orders  map[int64]*Order
	items   map[int64]*Item
	nextOID int64
	nextIID int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:  make(map[int64]*Order),
		items:   make(map[int64]*Item),
		nextOID: 1,
		nextIID: 1,
	}
}

func (m *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryOrderRepo) GetOrder(_ context.Context, id int64) (Order, []Item, error) {
	order, ok := m.orders[id]
	if !ok {
		return Order{}, nil, ErrNotFound
	}
	var items []Item
	for _, item := range m.items {
		if item.OrderID == id {
			items = append(items, *item)
		}
	}
	return *order, items, nil
}

func (m *memoryOrderRepo) ListByUserDate(_ context.Context, userID int64, date time.Time) ([]Order, error) {
	var out []Order
	for _, order := range m.orders {
		if order.UserID == userID && order.OrderDate.Equal(date) {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *memoryOrderRepo) ListItemDetails(context.Context, time.Time, Status) ([]aggregation.Item, error) {
	return nil, nil
}

func (m *memoryOrderRepo) ResetByDate(_ context.Context, date time.Time) (int, error) {
	count := 0
	for _, order := range m.orders {
		if !order.OrderDate.Equal(date) {
			continue
		}
		m.resetOrder(order)
		count++
	}
	return count, nil
}

func (m *memoryOrderRepo) ResetAll(context.Context) (int, error) {
	for _, order := range m.orders {
		m.resetOrder(order)
	}
	return len(m.orders), nil
}

func (m *memoryOrderRepo) resetOrder(order *Order) {
	order.Status = StatusDraft
	for _, item := range m.items {
		if item.OrderID == order.ID {
			m.clearItem(item)
		}
	}
}

func (m *memoryOrderRepo) clearItem(item *Item) {
	item.ActualPrice = nil
	item.ActualQuantity = nil
	item.IsPurchased = false
	item.PurchaseReason = nil
	item.ReceivedQuantity = nil
	item.ReceivedAt = nil
}

func (m *memoryOrderRepo) CreateOrder(_ context.Context, order Order) (int64, error) {
	id := m.nextOID
	m.nextOID++
	order.ID = id
	m.orders[id] = &order
	return id, nil
}

func (m *memoryOrderRepo) InsertItem(_ context.Context, item Item) error {
	item.ID = m.nextIID
	m.nextIID++
	m.items[item.ID] = &item
	return nil
}

func (m *memoryOrderRepo) UpdateItem(_ context.Context, item Item) error {
	stored, ok := m.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Quantity = item.Quantity
	stored.RequestedPrice = item.RequestedPrice
	stored.Notes = item.Notes
	return nil
}

func (m *memoryOrderRepo) DeleteItem(_ context.Context, itemID int64) error {
	delete(m.items, itemID)
	return nil
}

func (m *memoryOrderRepo) DeleteItems(_ context.Context, orderID int64) error {
	for id, item := range m.items {
		if item.OrderID == orderID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memoryOrderRepo) DeleteOrder(_ context.Context, orderID int64) error {
	delete(m.orders, orderID)
	return nil
}

func (m *memoryOrderRepo) UpdateStatusTotal(_ context.Context, orderID int64, status Status, total float64) error {
	order, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	order.TotalAmount = total
	return nil
}

func (m *memoryOrderRepo) ClearReconciliation(_ context.Context, orderID int64) error {
	for _, item := range m.items {
		if item.OrderID == orderID {
			m.clearItem(item)
		}
	}
	return nil
}

type stubGate struct {
	closedAll bool
	closed    map[string]bool
}

func (g *stubGate) IsOpen(_ context.Context, date time.Time, branchID int64) (bool, error) {
	if g.closedAll {
		return false, nil
	}
	return !g.closed[date.Format("2006-01-02")], nil
}

func newTestService() (*Service, *memoryOrderRepo, *stubGate) {
	repo := newMemoryOrderRepo()
	gate := &stubGate{closed: make(map[string]bool)}
	return NewService(repo, gate, nil), repo, gate
}

var testDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func createDraft(t *testing.T, svc *Service, items ...ItemInput) Order {
	t.Helper()
	if len(items) == 0 {
		items = []ItemInput{{ProductID: 100, Quantity: 5, RequestedPrice: 20}}
	}
	order, err := svc.Create(context.Background(), CreateInput{
		UserID:    7,
		BranchID:  1,
		OrderDate: testDate,
		Items:     items,
	})
	require.NoError(t, err)
	return order
}

func TestCreateGeneratesNumberAndTotal(t *testing.T) {
	svc, _, _ := newTestService()
	order := createDraft(t, svc,
		ItemInput{ProductID: 100, Quantity: 5, RequestedPrice: 20},
		ItemInput{ProductID: 200, Quantity: 2, RequestedPrice: 15},
	)
	require.Equal(t, StatusDraft, order.Status)
	require.Regexp(t, `^OR-20260310-[0-9A-F]{8}$`, order.Number)
	require.InDelta(t, 130.0, order.TotalAmount, 1e-9)
}

func TestCreateRejectsClosedDay(t *testing.T) {
	svc, _, gate := newTestService()
	gate.closedAll = true
	_, err := svc.Create(context.Background(), CreateInput{
		UserID: 7, BranchID: 1, OrderDate: testDate,
		Items: []ItemInput{{ProductID: 100, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrOrderLocked)
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, LockDayClosed, locked.Cause)
}

func TestCreateSkipsNonPositiveAndRejectsEmpty(t *testing.T) {
	svc, repo, _ := newTestService()

	order := createDraft(t, svc,
		ItemInput{ProductID: 100, Quantity: 5, RequestedPrice: 20},
		ItemInput{ProductID: 200, Quantity: 0, RequestedPrice: 15},
		ItemInput{ProductID: 300, Quantity: -2, RequestedPrice: 15},
	)
	_, items, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(100), items[0].ProductID)

	_, err = svc.Create(context.Background(), CreateInput{
		UserID: 7, BranchID: 1, OrderDate: testDate,
		Items: []ItemInput{{ProductID: 100, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreateRejectsDuplicateProduct(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateInput{
		UserID: 7, BranchID: 1, OrderDate: testDate,
		Items: []ItemInput{
			{ProductID: 100, Quantity: 1},
			{ProductID: 100, Quantity: 2},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateProduct)
}

func TestSubmitFreezesTotalAndRequiresDraft(t *testing.T) {
	svc, repo, _ := newTestService()
	order := createDraft(t, svc, ItemInput{ProductID: 100, Quantity: 3, RequestedPrice: 10})

	require.NoError(t, svc.Submit(context.Background(), order.ID, 7))
	stored, _, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, stored.Status)
	require.InDelta(t, 30.0, stored.TotalAmount, 1e-9)

	err = svc.Submit(context.Background(), order.ID, 7)
	require.ErrorIs(t, err, ErrOrderLocked)
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, LockStatus, locked.Cause)
}

func TestSubmitRejectsClosedDay(t *testing.T) {
	svc, _, gate := newTestService()
	order := createDraft(t, svc)
	gate.closed[testDate.Format("2006-01-02")] = true

	err := svc.Submit(context.Background(), order.ID, 7)
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, LockDayClosed, locked.Cause)
}

func TestUpdateReconcilesByProduct(t *testing.T) {
	svc, repo, _ := newTestService()
	order := createDraft(t, svc,
		ItemInput{ProductID: 100, Quantity: 5, RequestedPrice: 20},
		ItemInput{ProductID: 200, Quantity: 2, RequestedPrice: 15},
	)

	// Keep 100 with a purchase mark, change its quantity, drop 200, add 300.
	for _, item := range repo.items {
		if item.ProductID == 100 {
			price := 22.0
			item.ActualPrice = &price
			item.IsPurchased = true
		}
	}

	_, items, err := svc.Update(context.Background(), order.ID, 7, []ItemInput{
		{ProductID: 100, Quantity: 8, RequestedPrice: 20},
		{ProductID: 200, Quantity: 0},
		{ProductID: 300, Quantity: 1, RequestedPrice: 50},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	byProduct := make(map[int64]Item)
	for _, item := range items {
		byProduct[item.ProductID] = item
	}
	require.Equal(t, 8.0, byProduct[100].Quantity)
	require.True(t, byProduct[100].IsPurchased, "retained line keeps purchase fields")
	require.NotNil(t, byProduct[100].ActualPrice)
	require.Contains(t, byProduct, int64(300))
	require.NotContains(t, byProduct, int64(200))

	stored, _, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.InDelta(t, 8*20+1*50, stored.TotalAmount, 1e-9)
}

func TestUpdateRejectsWhenNothingRemains(t *testing.T) {
	svc, _, _ := newTestService()
	order := createDraft(t, svc)
	_, _, err := svc.Update(context.Background(), order.ID, 7, []ItemInput{
		{ProductID: 100, Quantity: 0},
	})
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestUpdateLockedByStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	order := createDraft(t, svc)
	repo.orders[order.ID].Status = StatusConfirmed

	_, _, err := svc.Update(context.Background(), order.ID, 7, []ItemInput{
		{ProductID: 100, Quantity: 9},
	})
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, LockStatus, locked.Cause)
}

func TestDeleteRemovesOrderAndItems(t *testing.T) {
	svc, repo, _ := newTestService()
	order := createDraft(t, svc)
	require.NoError(t, svc.Delete(context.Background(), order.ID, 7))
	_, _, err := repo.GetOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.items)
}

func TestCancelOnlyFromEditableStates(t *testing.T) {
	svc, repo, _ := newTestService()
	order := createDraft(t, svc)
	require.NoError(t, svc.Cancel(context.Background(), order.ID, 7))
	require.Equal(t, StatusCancelled, repo.orders[order.ID].Status)

	other := createDraft(t, svc)
	repo.orders[other.ID].Status = StatusCompleted
	err := svc.Cancel(context.Background(), other.ID, 7)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestResetClearsReconciliationAndForcesDraft(t *testing.T) {
	svc, repo, _ := newTestService()
	order := createDraft(t, svc)
	repo.orders[order.ID].Status = StatusCompleted
	for _, item := range repo.items {
		price, qty := 22.0, 4.0
		reason := "สินค้าแพง"
		now := time.Now()
		item.ActualPrice = &price
		item.ActualQuantity = &qty
		item.IsPurchased = true
		item.PurchaseReason = &reason
		item.ReceivedQuantity = &qty
		item.ReceivedAt = &now
	}

	require.NoError(t, svc.Reset(context.Background(), order.ID, 7))
	require.Equal(t, StatusDraft, repo.orders[order.ID].Status)
	for _, item := range repo.items {
		require.Nil(t, item.ActualPrice)
		require.Nil(t, item.ActualQuantity)
		require.False(t, item.IsPurchased)
		require.Nil(t, item.PurchaseReason)
		require.Nil(t, item.ReceivedQuantity)
		require.Nil(t, item.ReceivedAt)
	}
}

func TestResetDayOnlyTouchesDate(t *testing.T) {
	svc, repo, _ := newTestService()
	first := createDraft(t, svc)
	repo.orders[first.ID].Status = StatusConfirmed

	otherDate := testDate.AddDate(0, 0, 1)
	other, err := svc.Create(context.Background(), CreateInput{
		UserID: 7, BranchID: 1, OrderDate: otherDate,
		Items: []ItemInput{{ProductID: 100, Quantity: 1}},
	})
	require.NoError(t, err)
	repo.orders[other.ID].Status = StatusConfirmed

	count, err := svc.ResetDay(context.Background(), testDate, 7)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, StatusDraft, repo.orders[first.ID].Status)
	require.Equal(t, StatusConfirmed, repo.orders[other.ID].Status)
}

func TestGetUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.Get(context.Background(), 999)
	require.True(t, errors.Is(err, ErrNotFound))
}
