package receiving

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/khlang-erp/khlang-erp/internal/orderday"
	"github.com/khlang-erp/khlang-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListUserLines(ctx context.Context, date time.Time, userID int64) ([]Line, error)
	ListBranchLines(ctx context.Context, date time.Time, branchID int64) ([]Line, error)
	InsertManual(ctx context.Context, item ManualItem) (int64, error)
	ListManual(ctx context.Context, date time.Time) ([]ManualItem, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetLine(ctx context.Context, itemID int64) (Line, error)
	ListProductLines(ctx context.Context, date time.Time, branchID, productID int64) ([]Line, error)
	SetReceived(ctx context.Context, itemID int64, quantity float64, at time.Time) error
	ClearReceivedAt(ctx context.Context, itemID int64) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reconciles arrivals against purchased quantities.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the receiving service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ItemReceipt records one arrival against a single order item.
type ItemReceipt struct {
	OrderItemID      int64
	ReceivedQuantity float64
}

// ProductReceipt records one consolidated arrival for a product at a
// branch; the quantity is split back over the contributing order items.
type ProductReceipt struct {
	ProductID        int64
	ReceivedQuantity float64
}

// UpdateResult reports what was written to one order item.
type UpdateResult struct {
	OrderItemID      int64     `json:"order_item_id"`
	ProductID        int64     `json:"product_id"`
	ExpectedQuantity float64   `json:"expected_quantity"`
	ReceivedQuantity float64   `json:"received_quantity"`
	Diff             DiffClass `json:"diff"`
}

// BranchProduct is the per-product consolidation of a branch's expected
// arrivals.
type BranchProduct struct {
	ProductID        int64
	ProductName      string
	UnitAbbr         string
	GroupID          *int64
	GroupName        string
	ExpectedQuantity float64
	ReceivedQuantity float64
	AllReceived      bool
	Diff             DiffClass
	Items            []Line
}

// ListMine returns the user's receivable lines for the date.
func (s *Service) ListMine(ctx context.Context, date time.Time, userID int64) ([]Line, error) {
	return s.repo.ListUserLines(ctx, orderday.Truncate(date), userID)
}

// ListBranch returns the branch worklist consolidated per product.
func (s *Service) ListBranch(ctx context.Context, date time.Time, branchID int64) ([]BranchProduct, error) {
	lines, err := s.repo.ListBranchLines(ctx, orderday.Truncate(date), branchID)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[int64][]Line)
	for _, line := range lines {
		byProduct[line.ProductID] = append(byProduct[line.ProductID], line)
	}

	products := make([]BranchProduct, 0, len(byProduct))
	for productID, members := range byProduct {
		sort.Slice(members, func(i, j int) bool { return members[i].ItemID < members[j].ItemID })
		product := BranchProduct{
			ProductID:   productID,
			ProductName: members[0].ProductName,
			UnitAbbr:    members[0].UnitAbbr,
			GroupID:     members[0].GroupID,
			GroupName:   members[0].GroupName,
			AllReceived: true,
			Items:       members,
		}
		for _, line := range members {
			product.ExpectedQuantity += line.ExpectedQuantity()
			if line.ReceivedQuantity != nil {
				product.ReceivedQuantity += *line.ReceivedQuantity
			}
			if !line.Locked() {
				product.AllReceived = false
			}
		}
		product.Diff = Classify(product.ExpectedQuantity, product.ReceivedQuantity)
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ProductID < products[j].ProductID })
	return products, nil
}

// UpdateMine records arrivals item by item. Only the actor's own lines
// may be written. A line that was already received is locked and must
// be unlocked explicitly first.
func (s *Service) UpdateMine(ctx context.Context, receipts []ItemReceipt, actorID int64) ([]UpdateResult, error) {
	if len(receipts) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrValidation)
	}
	now := s.now()
	var results []UpdateResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, receipt := range receipts {
			if receipt.ReceivedQuantity < 0 {
				return fmt.Errorf("%w: negative received quantity", ErrValidation)
			}
			line, err := tx.GetLine(ctx, receipt.OrderItemID)
			if err != nil {
				return err
			}
			if line.UserID != actorID {
				return fmt.Errorf("%w: item %d", ErrNotOwned, line.ItemID)
			}
			if line.Locked() {
				return fmt.Errorf("%w: item %d", ErrItemLocked, line.ItemID)
			}
			if err := tx.SetReceived(ctx, line.ItemID, receipt.ReceivedQuantity, now); err != nil {
				return err
			}
			results = append(results, UpdateResult{
				OrderItemID:      line.ItemID,
				ProductID:        line.ProductID,
				ExpectedQuantity: line.ExpectedQuantity(),
				ReceivedQuantity: receipt.ReceivedQuantity,
				Diff:             Classify(line.ExpectedQuantity(), receipt.ReceivedQuantity),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "RECEIVE_ITEMS", 0, map[string]any{"items": len(results)})
	return results, nil
}

// UpdateBranch records consolidated arrivals and apportions each
// product's quantity back over its unlocked order items pro-rata by
// expected quantity, remainder on the last item so the parts sum back
// to the consolidated figure exactly.
func (s *Service) UpdateBranch(ctx context.Context, date time.Time, branchID int64, receipts []ProductReceipt, actorID int64) ([]UpdateResult, error) {
	if len(receipts) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrValidation)
	}
	date = orderday.Truncate(date)
	now := s.now()
	var results []UpdateResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, receipt := range receipts {
			if receipt.ReceivedQuantity < 0 {
				return fmt.Errorf("%w: negative received quantity", ErrValidation)
			}
			lines, err := tx.ListProductLines(ctx, date, branchID, receipt.ProductID)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return fmt.Errorf("%w: product %d", ErrNotFound, receipt.ProductID)
			}
			var open []Line
			for _, line := range lines {
				if !line.Locked() {
					open = append(open, line)
				}
			}
			if len(open) == 0 {
				return fmt.Errorf("%w: product %d fully received", ErrItemLocked, receipt.ProductID)
			}
			sort.Slice(open, func(i, j int) bool { return open[i].ItemID < open[j].ItemID })

			weights := make([]float64, len(open))
			for i, line := range open {
				weights[i] = line.ExpectedQuantity()
			}
			shares := shared.ApportionFloats(receipt.ReceivedQuantity, weights)
			for i, line := range open {
				if err := tx.SetReceived(ctx, line.ItemID, shares[i], now); err != nil {
					return err
				}
				results = append(results, UpdateResult{
					OrderItemID:      line.ItemID,
					ProductID:        line.ProductID,
					ExpectedQuantity: line.ExpectedQuantity(),
					ReceivedQuantity: shares[i],
					Diff:             Classify(line.ExpectedQuantity(), shares[i]),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "RECEIVE_BRANCH", branchID, map[string]any{
		"date": date.Format("2006-01-02"), "products": len(receipts),
	})
	return results, nil
}

// UnlockItem clears the received timestamp so the line can be edited
// again. Only the item's owner may unlock it; the recorded quantity
// stays for reference.
func (s *Service) UnlockItem(ctx context.Context, itemID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetLine(ctx, itemID)
		if err != nil {
			return err
		}
		if line.UserID != actorID {
			return fmt.Errorf("%w: item %d", ErrNotOwned, line.ItemID)
		}
		return tx.ClearReceivedAt(ctx, itemID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "RECEIVE_UNLOCK", itemID, nil)
	return nil
}

// ManualInput describes an off-order receipt. BranchID and DepartmentID
// come from the session identity of the creating user.
type ManualInput struct {
	Date             time.Time
	BranchID         int64
	DepartmentID     int64
	ProductID        int64
	ReceivedQuantity float64
	Reason           string
	ActorID          int64
}

// CreateManual records goods that arrived without an order line. It
// requires a positive quantity and a reason; order statuses are never
// touched.
func (s *Service) CreateManual(ctx context.Context, input ManualInput) (ManualItem, error) {
	reason := strings.TrimSpace(input.Reason)
	if input.ReceivedQuantity <= 0 || reason == "" || input.ProductID <= 0 {
		return ManualItem{}, ErrInvalidManualReceipt
	}
	item := ManualItem{
		ReceiveDate:      orderday.Truncate(input.Date),
		BranchID:         input.BranchID,
		DepartmentID:     input.DepartmentID,
		ProductID:        input.ProductID,
		ReceivedQuantity: input.ReceivedQuantity,
		Reason:           reason,
		CreatedBy:        input.ActorID,
		CreatedAt:        s.now(),
	}
	id, err := s.repo.InsertManual(ctx, item)
	if err != nil {
		return ManualItem{}, err
	}
	item.ID = id
	s.recordAudit(ctx, input.ActorID, "RECEIVE_MANUAL", id, map[string]any{
		"product_id": input.ProductID, "quantity": input.ReceivedQuantity,
	})
	return item, nil
}

// ListManual returns the manual items recorded for a date.
func (s *Service) ListManual(ctx context.Context, date time.Time) ([]ManualItem, error) {
	return s.repo.ListManual(ctx, orderday.Truncate(date))
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "receiving", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
