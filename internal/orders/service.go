package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khlang-erp/khlang-erp/internal/aggregation"
	"github.com/khlang-erp/khlang-erp/internal/orderday"
	"github.com/khlang-erp/khlang-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, []Item, error)
	ListByUserDate(ctx context.Context, userID int64, date time.Time) ([]Order, error)
	ListItemDetails(ctx context.Context, date time.Time, status Status) ([]aggregation.Item, error)
	ResetByDate(ctx context.Context, date time.Time) (int, error)
	ResetAll(ctx context.Context) (int, error)
}

// GatePort exposes the day gate check. Re-checked on every mutating call,
// not only at initial load, so a submission racing an admin close is
// rejected on its next edit.
type GatePort interface {
	IsOpen(ctx context.Context, date time.Time, branchID int64) (bool, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the order aggregate and its state machine.
type Service struct {
	repo  RepositoryPort
	gate  GatePort
	audit AuditPort
}

// NewService constructs the orders service.
func NewService(repo RepositoryPort, gate GatePort, audit AuditPort) *Service {
	return &Service{repo: repo, gate: gate, audit: audit}
}

// ItemInput describes one requested line.
type ItemInput struct {
	ProductID      int64
	Quantity       float64
	RequestedPrice float64
	Notes          string
}

// CreateInput describes order creation payload.
type CreateInput struct {
	UserID       int64
	BranchID     int64
	DepartmentID int64
	OrderDate    time.Time
	Items        []ItemInput
}

// Create persists a new draft order with its items. The target date must
// be open for the branch.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	date := orderday.Truncate(input.OrderDate)
	if err := s.requireOpenDay(ctx, date, input.BranchID, 0); err != nil {
		return Order{}, err
	}
	items, err := normalizeItems(input.Items)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		Number:       generateNumber(date),
		BranchID:     input.BranchID,
		DepartmentID: input.DepartmentID,
		UserID:       input.UserID,
		OrderDate:    date,
		Status:       StatusDraft,
		TotalAmount:  itemsTotal(items),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for _, item := range items {
			item.OrderID = orderID
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, input.UserID, "ORDER_CREATE", order.ID, map[string]any{"number": order.Number, "date": date.Format("2006-01-02")})
	return order, nil
}

// Submit transitions a draft order to submitted and freezes its total.
func (s *Service) Submit(ctx context.Context, orderID, actorID int64) error {
	order, items, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft {
		return &LockedError{OrderID: orderID, Cause: LockStatus}
	}
	if err := s.requireOpenDay(ctx, order.OrderDate, order.BranchID, orderID); err != nil {
		return err
	}
	if countPositive(items) == 0 {
		return ErrEmptyOrder
	}
	total := itemsTotal(items)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatusTotal(ctx, orderID, StatusSubmitted, total)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ORDER_SUBMIT", orderID, map[string]any{"total": total})
	return nil
}

// Update replaces the item set wholesale, keyed by product. A product
// missing from the payload or sent with quantity <= 0 is removed;
// existing lines keep their purchase/receiving fields.
func (s *Service) Update(ctx context.Context, orderID, actorID int64, inputs []ItemInput) (Order, []Item, error) {
	order, existing, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	if err := s.requireEditable(ctx, order); err != nil {
		return Order{}, nil, err
	}

	incoming := make(map[int64]ItemInput, len(inputs))
	for _, in := range inputs {
		if in.ProductID == 0 {
			return Order{}, nil, fmt.Errorf("%w: product id required", ErrValidation)
		}
		if _, dup := incoming[in.ProductID]; dup {
			return Order{}, nil, ErrDuplicateProduct
		}
		incoming[in.ProductID] = in
	}

	current := make(map[int64]Item, len(existing))
	for _, item := range existing {
		current[item.ProductID] = item
	}

	// Deterministic add/modify/remove reconciliation keyed by product.
	var adds []Item
	var mods []Item
	var removals []int64
	remaining := 0
	for productID, in := range incoming {
		if in.Quantity <= 0 {
			continue
		}
		remaining++
		if cur, ok := current[productID]; ok {
			cur.Quantity = in.Quantity
			cur.RequestedPrice = in.RequestedPrice
			cur.Notes = in.Notes
			mods = append(mods, cur)
			continue
		}
		adds = append(adds, Item{
			OrderID:        orderID,
			ProductID:      productID,
			Quantity:       in.Quantity,
			RequestedPrice: in.RequestedPrice,
			Notes:          in.Notes,
		})
	}
	for productID, item := range current {
		in, ok := incoming[productID]
		if !ok || in.Quantity <= 0 {
			removals = append(removals, item.ID)
		}
	}
	if remaining == 0 {
		return Order{}, nil, ErrEmptyOrder
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range removals {
			if err := tx.DeleteItem(ctx, id); err != nil {
				return err
			}
		}
		for _, item := range mods {
			if err := tx.UpdateItem(ctx, item); err != nil {
				return err
			}
		}
		for _, item := range adds {
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		total := 0.0
		for _, item := range mods {
			total += item.Quantity * item.RequestedPrice
		}
		for _, item := range adds {
			total += item.Quantity * item.RequestedPrice
		}
		return tx.UpdateStatusTotal(ctx, orderID, order.Status, total)
	})
	if err != nil {
		return Order{}, nil, err
	}
	s.recordAudit(ctx, actorID, "ORDER_UPDATE", orderID, map[string]any{
		"added": len(adds), "modified": len(mods), "removed": len(removals),
	})
	return s.Get(ctx, orderID)
}

// Delete removes the order and its items under the same conditions as Update.
func (s *Service) Delete(ctx context.Context, orderID, actorID int64) error {
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.requireEditable(ctx, order); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteItems(ctx, orderID); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ORDER_DELETE", orderID, map[string]any{"number": order.Number})
	return nil
}

// Cancel moves a draft or submitted order to cancelled.
func (s *Service) Cancel(ctx context.Context, orderID, actorID int64) error {
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Editable() {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatusTotal(ctx, orderID, StatusCancelled, order.TotalAmount)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ORDER_CANCEL", orderID, nil)
	return nil
}

// Reset forces an order back to draft and clears every purchase and
// receiving field on its items. Admin correction workflow.
func (s *Service) Reset(ctx context.Context, orderID, actorID int64) error {
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClearReconciliation(ctx, orderID); err != nil {
			return err
		}
		return tx.UpdateStatusTotal(ctx, orderID, StatusDraft, order.TotalAmount)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ORDER_RESET", orderID, nil)
	return nil
}

// ResetDay resets every order placed for the date.
func (s *Service) ResetDay(ctx context.Context, date time.Time, actorID int64) (int, error) {
	count, err := s.repo.ResetByDate(ctx, orderday.Truncate(date))
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "ORDER_RESET_DAY", 0, map[string]any{"date": date.Format("2006-01-02"), "count": count})
	return count, nil
}

// ResetAll resets every order in the system. Destructive and
// irreversible; the HTTP boundary demands an explicit confirmation header
// before invoking this, the service itself performs it unconditionally.
func (s *Service) ResetAll(ctx context.Context, actorID int64) (int, error) {
	count, err := s.repo.ResetAll(ctx)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "ORDER_RESET_ALL", 0, map[string]any{"count": count})
	return count, nil
}

// Get returns the order with its items.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, []Item, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// ListMine returns the user's orders for the date.
func (s *Service) ListMine(ctx context.Context, userID int64, date time.Time) ([]Order, error) {
	return s.repo.ListByUserDate(ctx, userID, orderday.Truncate(date))
}

// ListItemDetails returns the flat denormalized item rows for a date,
// feeding admin worklists and the aggregation engine.
func (s *Service) ListItemDetails(ctx context.Context, date time.Time, status Status) ([]aggregation.Item, error) {
	return s.repo.ListItemDetails(ctx, orderday.Truncate(date), status)
}

func (s *Service) requireEditable(ctx context.Context, order Order) error {
	if !order.Editable() {
		return &LockedError{OrderID: order.ID, Cause: LockStatus}
	}
	return s.requireOpenDay(ctx, order.OrderDate, order.BranchID, order.ID)
}

func (s *Service) requireOpenDay(ctx context.Context, date time.Time, branchID, orderID int64) error {
	open, err := s.gate.IsOpen(ctx, date, branchID)
	if err != nil {
		return err
	}
	if !open {
		return &LockedError{OrderID: orderID, Cause: LockDayClosed}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "orders", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func normalizeItems(inputs []ItemInput) ([]Item, error) {
	seen := make(map[int64]struct{}, len(inputs))
	var items []Item
	for _, in := range inputs {
		if in.ProductID == 0 {
			return nil, fmt.Errorf("%w: product id required", ErrValidation)
		}
		if _, dup := seen[in.ProductID]; dup {
			return nil, ErrDuplicateProduct
		}
		seen[in.ProductID] = struct{}{}
		if in.Quantity <= 0 {
			continue
		}
		if in.RequestedPrice < 0 {
			return nil, fmt.Errorf("%w: negative price", ErrValidation)
		}
		items = append(items, Item{
			ProductID:      in.ProductID,
			Quantity:       in.Quantity,
			RequestedPrice: in.RequestedPrice,
			Notes:          in.Notes,
		})
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	return items, nil
}

func itemsTotal(items []Item) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Quantity * item.RequestedPrice
	}
	return total
}

func countPositive(items []Item) int {
	count := 0
	for _, item := range items {
		if item.Quantity > 0 {
			count++
		}
	}
	return count
}

func generateNumber(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("OR-%s-%s", date.Format("20060102"), suffix)
}
