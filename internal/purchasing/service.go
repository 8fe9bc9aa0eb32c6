package purchasing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/khlang-erp/khlang-erp/internal/orderday"
	"github.com/khlang-erp/khlang-erp/internal/orders"
	"github.com/khlang-erp/khlang-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations. Both the fan-out and
// the completion check run entirely inside one transaction so the
// precondition cannot rot between read and write.
type TxRepository interface {
	ListProductLines(ctx context.Context, date time.Time, productID int64) ([]Line, error)
	UpdatePurchase(ctx context.Context, itemID int64, actualPrice, actualQuantity *float64, purchased bool, reason *string) error
	ListGroupLines(ctx context.Context, date time.Time, groupID int64) ([]Line, error)
	CountUnpurchased(ctx context.Context, orderID int64) (int, error)
	SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) (bool, error)
}

// NotifierPort pushes the completion notice. Implementations enqueue, so
// failures never abort the purchase itself.
type NotifierPort interface {
	NotifyGroupCompleted(ctx context.Context, date time.Time, groupID int64, updated int) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reconciles purchases against requested items.
type Service struct {
	repo     RepositoryPort
	notifier NotifierPort
	audit    AuditPort
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, notifier NotifierPort, audit AuditPort) *Service {
	return &Service{repo: repo, notifier: notifier, audit: audit}
}

// RecordInput is one buyer action against a product for a date. Nil
// ActualQuantity means "bought exactly what was ordered"; nil
// ActualPrice keeps each line's requested price.
type RecordInput struct {
	Date           time.Time
	ProductID      int64
	ActualPrice    *float64
	ActualQuantity *float64
	IsPurchased    bool
	Reason         string
	ActorID        int64
}

// LineResult reports the values written to one order item.
type LineResult struct {
	ItemID         int64    `json:"order_item_id"`
	OrderID        int64    `json:"order_id"`
	ActualPrice    *float64 `json:"actual_price"`
	ActualQuantity *float64 `json:"actual_quantity"`
	IsPurchased    bool     `json:"is_purchased"`
	Reason         *string  `json:"purchase_reason"`
}

// RecordByProduct fans one purchase out over every order item of the
// date requesting the product. The bought quantity is split pro-rata by
// requested quantity, with the rounding remainder on the last line so
// the split sums back exactly. Buying less than ordered requires a
// reason; buying enough clears any previous one. IsPurchased false
// resets the product's purchase and is always allowed.
func (s *Service) RecordByProduct(ctx context.Context, input RecordInput) ([]LineResult, error) {
	if input.ActualQuantity != nil && *input.ActualQuantity < 0 {
		return nil, fmt.Errorf("%w: negative actual quantity", ErrValidation)
	}
	if input.ActualPrice != nil && *input.ActualPrice < 0 {
		return nil, fmt.Errorf("%w: negative actual price", ErrValidation)
	}
	date := orderday.Truncate(input.Date)

	var results []LineResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.ListProductLines(ctx, date, input.ProductID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNotFound
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })

		if !input.IsPurchased {
			for _, line := range lines {
				if err := tx.UpdatePurchase(ctx, line.ItemID, nil, nil, false, nil); err != nil {
					return err
				}
				results = append(results, LineResult{ItemID: line.ItemID, OrderID: line.OrderID})
			}
			return nil
		}

		ordered := 0.0
		weights := make([]float64, len(lines))
		for i, line := range lines {
			ordered += line.Quantity
			weights[i] = line.Quantity
		}
		actualTotal := ordered
		if input.ActualQuantity != nil {
			actualTotal = *input.ActualQuantity
		}

		var reason *string
		if actualTotal < ordered {
			trimmed := strings.TrimSpace(input.Reason)
			if trimmed == "" {
				return ErrReasonRequired
			}
			reason = &trimmed
		}

		shares := shared.ApportionFloats(actualTotal, weights)
		for i, line := range lines {
			price := line.RequestedPrice
			if input.ActualPrice != nil {
				price = *input.ActualPrice
			}
			share := shares[i]
			result := LineResult{
				ItemID:         line.ItemID,
				OrderID:        line.OrderID,
				ActualPrice:    &price,
				ActualQuantity: &share,
				IsPurchased:    true,
				Reason:         reason,
			}
			if err := tx.UpdatePurchase(ctx, line.ItemID, result.ActualPrice, result.ActualQuantity, true, reason); err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, input.ActorID, "PURCHASE_RECORD", input.ProductID, map[string]any{
		"date":      date.Format("2006-01-02"),
		"purchased": input.IsPurchased,
		"lines":     len(results),
	})
	return results, nil
}

// CompleteByGroup closes out purchasing for one product group. Every
// item of the group must already be purchased; otherwise the offending
// items come back in an IncompletePurchaseError and nothing changes.
// Affected orders move to completed when all their items (across all
// groups) are purchased, confirmed otherwise. Repeat calls report
// updated = 0.
func (s *Service) CompleteByGroup(ctx context.Context, date time.Time, groupID, actorID int64) (int, error) {
	date = orderday.Truncate(date)
	updated := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.ListGroupLines(ctx, date, groupID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNotFound
		}

		var blocking []UnpurchasedItem
		orderIDs := make(map[int64]struct{})
		for _, line := range lines {
			orderIDs[line.OrderID] = struct{}{}
			if !line.IsPurchased {
				blocking = append(blocking, UnpurchasedItem{
					ItemID:      line.ItemID,
					OrderID:     line.OrderID,
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					Quantity:    line.Quantity,
				})
			}
		}
		if len(blocking) > 0 {
			sort.Slice(blocking, func(i, j int) bool { return blocking[i].ItemID < blocking[j].ItemID })
			return &IncompletePurchaseError{Date: date, GroupID: groupID, Items: blocking}
		}

		ids := make([]int64, 0, len(orderIDs))
		for id := range orderIDs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, orderID := range ids {
			pending, err := tx.CountUnpurchased(ctx, orderID)
			if err != nil {
				return err
			}
			status := orders.StatusCompleted
			if pending > 0 {
				status = orders.StatusConfirmed
			}
			changed, err := tx.SetOrderStatus(ctx, orderID, status)
			if err != nil {
				return err
			}
			if changed {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.notifier != nil && updated > 0 {
		// Best effort; the completion is already committed.
		_ = s.notifier.NotifyGroupCompleted(ctx, date, groupID, updated)
	}
	s.recordAudit(ctx, actorID, "PURCHASE_COMPLETE_GROUP", groupID, map[string]any{
		"date": date.Format("2006-01-02"), "updated": updated,
	})
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "purchasing", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
