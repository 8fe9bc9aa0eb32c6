// Package purchasing reconciles what the buyer actually bought against
// what branches requested, fanned out per product across every order of
// the day.
package purchasing

import (
	"errors"
	"fmt"
	"time"
)

// Suggested shortage reasons shown by the client. Free text is accepted
// too; the rule is only that a reason exists.
const (
	ReasonExpensive  = "สินค้าแพง"
	ReasonOutOfStock = "สินค้าขาดตลาด"
	ReasonBuyLater   = "มาซื้ออีกครั้ง"
)

var (
	// ErrNotFound indicates no order items match the date and product.
	ErrNotFound = errors.New("purchasing: no matching order items")
	// ErrReasonRequired occurs when a shortage purchase carries no reason.
	ErrReasonRequired = errors.New("purchasing: reason required when actual quantity is below ordered")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchasing: invalid input")
	// ErrIncompletePurchase is the base error matched by errors.Is when a
	// group still has unpurchased items.
	ErrIncompletePurchase = errors.New("purchasing: group has unpurchased items")
)

// Line is one order item as seen by the purchase fan-out.
type Line struct {
	ItemID         int64
	OrderID        int64
	ProductID      int64
	ProductName    string
	Quantity       float64
	RequestedPrice float64
	IsPurchased    bool
}

// UnpurchasedItem identifies a line blocking group completion.
type UnpurchasedItem struct {
	ItemID      int64   `json:"order_item_id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
}

// IncompletePurchaseError carries the exact items still unpurchased so
// the client can list them instead of guessing.
type IncompletePurchaseError struct {
	Date    time.Time
	GroupID int64
	Items   []UnpurchasedItem
}

func (e *IncompletePurchaseError) Error() string {
	return fmt.Sprintf("purchasing: group %d on %s has %d unpurchased items",
		e.GroupID, e.Date.Format("2006-01-02"), len(e.Items))
}

func (e *IncompletePurchaseError) Unwrap() error { return ErrIncompletePurchase }
