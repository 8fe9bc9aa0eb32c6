package receiving

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryReceivingRepo struct {
	lines  map[int64]*Line
	manual []ManualItem
	dates  map[int64]time.Time
	nextID int64
}

func newMemoryReceivingRepo() *memoryReceivingRepo {
	return &memoryReceivingRepo{
		lines:  make(map[int64]*Line),
		dates:  make(map[int64]time.Time),
		nextID: 1,
	}
}

func (m *memoryReceivingRepo) add(line Line, date time.Time) {
	m.lines[line.ItemID] = &line
	m.dates[line.ItemID] = date
}

func (m *memoryReceivingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryReceivingRepo) ListUserLines(_ context.Context, date time.Time, userID int64) ([]Line, error) {
	var out []Line
	for id, line := range m.lines {
		if m.dates[id].Equal(date) && line.UserID == userID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (m *memoryReceivingRepo) ListBranchLines(_ context.Context, date time.Time, branchID int64) ([]Line, error) {
	var out []Line
	for id, line := range m.lines {
		if m.dates[id].Equal(date) && line.BranchID == branchID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (m *memoryReceivingRepo) InsertManual(_ context.Context, item ManualItem) (int64, error) {
	item.ID = m.nextID
	m.nextID++
	m.manual = append(m.manual, item)
	return item.ID, nil
}

func (m *memoryReceivingRepo) ListManual(_ context.Context, date time.Time) ([]ManualItem, error) {
	var out []ManualItem
	for _, item := range m.manual {
		if item.ReceiveDate.Equal(date) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryReceivingRepo) GetLine(_ context.Context, itemID int64) (Line, error) {
	line, ok := m.lines[itemID]
	if !ok {
		return Line{}, ErrNotFound
	}
	return *line, nil
}

func (m *memoryReceivingRepo) ListProductLines(_ context.Context, date time.Time, branchID, productID int64) ([]Line, error) {
	var out []Line
	for id, line := range m.lines {
		if m.dates[id].Equal(date) && line.BranchID == branchID && line.ProductID == productID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (m *memoryReceivingRepo) SetReceived(_ context.Context, itemID int64, quantity float64, at time.Time) error {
	line, ok := m.lines[itemID]
	if !ok {
		return ErrNotFound
	}
	line.ReceivedQuantity = &quantity
	ts := at
	line.ReceivedAt = &ts
	return nil
}

func (m *memoryReceivingRepo) ClearReceivedAt(_ context.Context, itemID int64) error {
	line, ok := m.lines[itemID]
	if !ok {
		return ErrNotFound
	}
	line.ReceivedAt = nil
	return nil
}

var (
	receiveDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	frozenNow   = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
)

func qty(v float64) *float64 { return &v }

func newReceivingService(repo *memoryReceivingRepo) *Service {
	return NewService(repo, nil).WithClock(func() time.Time { return frozenNow })
}

func TestClassify(t *testing.T) {
	require.Equal(t, DiffShort, Classify(10, 8))
	require.Equal(t, DiffExact, Classify(10, 10))
	require.Equal(t, DiffSurplus, Classify(10, 11))
}

func TestExpectedQuantityPrefersPurchased(t *testing.T) {
	line := Line{OrderedQuantity: 10}
	require.Equal(t, 10.0, line.ExpectedQuantity())
	line.ActualQuantity = qty(8)
	require.Equal(t, 8.0, line.ExpectedQuantity())
}

func TestUpdateMineLocksItems(t *testing.T) {
	repo := newMemoryReceivingRepo()
	repo.add(Line{ItemID: 1, OrderID: 1, UserID: 7, BranchID: 1, ProductID: 100, OrderedQuantity: 10, ActualQuantity: qty(8)}, receiveDate)
	svc := newReceivingService(repo)

	results, err := svc.UpdateMine(context.Background(), []ItemReceipt{{OrderItemID: 1, ReceivedQuantity: 8}}, 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, DiffExact, results[0].Diff)
	require.Equal(t, frozenNow, *repo.lines[1].ReceivedAt)

	// Second write on a locked item fails.
	_, err = svc.UpdateMine(context.Background(), []ItemReceipt{{OrderItemID: 1, ReceivedQuantity: 9}}, 7)
	require.ErrorIs(t, err, ErrItemLocked)

	// Unlock, then the edit goes through.
	require.NoError(t, svc.UnlockItem(context.Background(), 1, 7))
	require.Nil(t, repo.lines[1].ReceivedAt)
	_, err = svc.UpdateMine(context.Background(), []ItemReceipt{{OrderItemID: 1, ReceivedQuantity: 9}}, 7)
	require.NoError(t, err)
	require.Equal(t, 9.0, *repo.lines[1].ReceivedQuantity)
}

func TestUpdateMineRejectsForeignItems(t *testing.T) {
	repo := newMemoryReceivingRepo()
	repo.add(Line{ItemID: 1, OrderID: 1, UserID: 99, BranchID: 1, ProductID: 100, OrderedQuantity: 10}, receiveDate)
	svc := newReceivingService(repo)

	// User 7 tries to record against an item owned by user 99.
	_, err := svc.UpdateMine(context.Background(), []ItemReceipt{{OrderItemID: 1, ReceivedQuantity: 3}}, 7)
	require.ErrorIs(t, err, ErrNotOwned)
	require.Nil(t, repo.lines[1].ReceivedQuantity)
	require.Nil(t, repo.lines[1].ReceivedAt)
}

func TestUnlockItemRejectsForeignItems(t *testing.T) {
	repo := newMemoryReceivingRepo()
	locked := frozenNow.Add(-time.Hour)
	repo.add(Line{ItemID: 1, OrderID: 1, UserID: 99, BranchID: 1, ProductID: 100, OrderedQuantity: 10, ReceivedQuantity: qty(10), ReceivedAt: &locked}, receiveDate)
	svc := newReceivingService(repo)

	require.ErrorIs(t, svc.UnlockItem(context.Background(), 1, 7), ErrNotOwned)
	require.NotNil(t, repo.lines[1].ReceivedAt)

	require.NoError(t, svc.UnlockItem(context.Background(), 1, 99))
	require.Nil(t, repo.lines[1].ReceivedAt)
}

func TestUpdateMineShortfallClassified(t *testing.T) {
	repo := newMemoryReceivingRepo()
	repo.add(Line{ItemID: 1, UserID: 7, BranchID: 1, ProductID: 100, OrderedQuantity: 10}, receiveDate)
	svc := newReceivingService(repo)

	results, err := svc.UpdateMine(context.Background(), []ItemReceipt{{OrderItemID: 1, ReceivedQuantity: 7}}, 7)
	require.NoError(t, err)
	require.Equal(t, DiffShort, results[0].Diff)
	require.Equal(t, 10.0, results[0].ExpectedQuantity)
}

func TestUpdateBranchApportionsExactly(t *testing.T) {
	repo := newMemoryReceivingRepo()
	repo.add(Line{ItemID: 1, OrderID: 1, BranchID: 1, ProductID: 100, OrderedQuantity: 10}, receiveDate)
	repo.add(Line{ItemID: 2, OrderID: 2, BranchID: 1, ProductID: 100, OrderedQuantity: 5}, receiveDate)
	svc := newReceivingService(repo)

	results, err := svc.UpdateBranch(context.Background(), receiveDate, 1, []ProductReceipt{{ProductID: 100, ReceivedQuantity: 9}}, 7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.InDelta(t, 6.0, *repo.lines[1].ReceivedQuantity, 1e-9)
	require.InDelta(t, 3.0, *repo.lines[2].ReceivedQuantity, 1e-9)
	require.InDelta(t, 9.0, *repo.lines[1].ReceivedQuantity+*repo.lines[2].ReceivedQuantity, 1e-9)
}

func TestUpdateBranchSumReconcilesForManyContributors(t *testing.T) {
	repo := newMemoryReceivingRepo()
	for i := 1; i <= 50; i++ {
		repo.add(Line{ItemID: int64(i), OrderID: int64(i), BranchID: 1, ProductID: 100, OrderedQuantity: float64(i)}, receiveDate)
	}
	svc := newReceivingService(repo)

	_, err := svc.UpdateBranch(context.Background(), receiveDate, 1, []ProductReceipt{{ProductID: 100, ReceivedQuantity: 100}}, 7)
	require.NoError(t, err)
	sum := 0.0
	for _, line := range repo.lines {
		sum += *line.ReceivedQuantity
	}
	require.InDelta(t, 100.0, sum, 1e-9)
}

func TestUpdateBranchSkipsLockedLines(t *testing.T) {
	repo := newMemoryReceivingRepo()
	locked := frozenNow.Add(-time.Hour)
	repo.add(Line{ItemID: 1, BranchID: 1, ProductID: 100, OrderedQuantity: 10, ReceivedQuantity: qty(10), ReceivedAt: &locked}, receiveDate)
	repo.add(Line{ItemID: 2, BranchID: 1, ProductID: 100, OrderedQuantity: 5}, receiveDate)
	svc := newReceivingService(repo)

	results, err := svc.UpdateBranch(context.Background(), receiveDate, 1, []ProductReceipt{{ProductID: 100, ReceivedQuantity: 4}}, 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(2), results[0].OrderItemID)
	// The locked line keeps its original receipt.
	require.Equal(t, 10.0, *repo.lines[1].ReceivedQuantity)
	require.Equal(t, 4.0, *repo.lines[2].ReceivedQuantity)
}

func TestUpdateBranchAllLockedFails(t *testing.T) {
	repo := newMemoryReceivingRepo()
	locked := frozenNow.Add(-time.Hour)
	repo.add(Line{ItemID: 1, BranchID: 1, ProductID: 100, OrderedQuantity: 10, ReceivedQuantity: qty(10), ReceivedAt: &locked}, receiveDate)
	svc := newReceivingService(repo)

	_, err := svc.UpdateBranch(context.Background(), receiveDate, 1, []ProductReceipt{{ProductID: 100, ReceivedQuantity: 4}}, 7)
	require.ErrorIs(t, err, ErrItemLocked)
}

func TestLinesCarryPurchaseReason(t *testing.T) {
	repo := newMemoryReceivingRepo()
	repo.add(Line{
		ItemID: 1, UserID: 7, BranchID: 1, ProductID: 100,
		OrderedQuantity: 10, ActualQuantity: qty(6), PurchaseReason: "ของหมดตลาด",
	}, receiveDate)
	svc := newReceivingService(repo)

	lines, err := svc.ListMine(context.Background(), receiveDate, 7)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "ของหมดตลาด", lines[0].PurchaseReason)

	// The reason rides along to the receiving screen payload.
	lj := lineToJSON(lines[0])
	require.Equal(t, "ของหมดตลาด", lj.PurchaseReason)
	require.Equal(t, 6.0, lj.ExpectedQuantity)
}

func TestListBranchConsolidates(t *testing.T) {
	repo := newMemoryReceivingRepo()
	repo.add(Line{ItemID: 1, BranchID: 1, ProductID: 100, ProductName: "กุ้งสด", OrderedQuantity: 10, ActualQuantity: qty(8)}, receiveDate)
	repo.add(Line{ItemID: 2, BranchID: 1, ProductID: 100, ProductName: "กุ้งสด", OrderedQuantity: 5, ActualQuantity: qty(4)}, receiveDate)
	repo.add(Line{ItemID: 3, BranchID: 1, ProductID: 200, ProductName: "น้ำปลา", OrderedQuantity: 2}, receiveDate)
	svc := newReceivingService(repo)

	products, err := svc.ListBranch(context.Background(), receiveDate, 1)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, int64(100), products[0].ProductID)
	require.InDelta(t, 12.0, products[0].ExpectedQuantity, 1e-9)
	require.False(t, products[0].AllReceived)
	require.Len(t, products[0].Items, 2)
}

func TestCreateManualValidation(t *testing.T) {
	repo := newMemoryReceivingRepo()
	svc := newReceivingService(repo)

	_, err := svc.CreateManual(context.Background(), ManualInput{Date: receiveDate, ProductID: 100, ReceivedQuantity: 0, Reason: ManualReasonOffCycle})
	require.ErrorIs(t, err, ErrInvalidManualReceipt)

	_, err = svc.CreateManual(context.Background(), ManualInput{Date: receiveDate, ProductID: 100, ReceivedQuantity: 3, Reason: "   "})
	require.ErrorIs(t, err, ErrInvalidManualReceipt)

	item, err := svc.CreateManual(context.Background(), ManualInput{
		Date: receiveDate.Add(13 * time.Hour), BranchID: 2, DepartmentID: 5,
		ProductID: 100, ReceivedQuantity: 3,
		Reason: ManualReasonWrongPurchase, ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, receiveDate, item.ReceiveDate, "receive date is truncated to midnight")
	require.Equal(t, ManualReasonWrongPurchase, item.Reason)
	require.Equal(t, int64(2), item.BranchID)
	require.Equal(t, int64(5), item.DepartmentID)
	require.Equal(t, int64(7), item.CreatedBy)

	listed, err := svc.ListManual(context.Background(), receiveDate)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, item.ID, listed[0].ID)
}
