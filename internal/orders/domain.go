package orders

import (
	"errors"
	"fmt"
	"time"
)

// Order lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Order is the per-branch daily purchase request header.
type Order struct {
	ID           int64
	Number       string
	BranchID     int64
	DepartmentID int64
	UserID       int64
	OrderDate    time.Time
	Status       Status
	TotalAmount  float64
	// TransferredFrom records the source branch when the order arrived
	// via a cross-branch transfer.
	TransferredFrom *int64
	CreatedAt       time.Time
}

// Item is one requested product line. One product appears at most once
// per order. Nil pointers mean the purchasing/receiving step has not
// touched the field yet.
type Item struct {
	ID               int64
	OrderID          int64
	ProductID        int64
	Quantity         float64
	RequestedPrice   float64
	Notes            string
	ActualPrice      *float64
	ActualQuantity   *float64
	IsPurchased      bool
	PurchaseReason   *string
	ReceivedQuantity *float64
	ReceivedAt       *time.Time
}

// Editable reports whether the order status still permits edits. The day
// gate is the second half of the check and lives with the service.
func (o Order) Editable() bool {
	return o.Status == StatusDraft || o.Status == StatusSubmitted
}

// LockCause tells the caller which condition blocked an edit, so the UI
// can distinguish "admin closed ordering" from "order already in
// processing".
type LockCause string

const (
	LockDayClosed LockCause = "DAY_CLOSED"
	LockStatus    LockCause = "STATUS"
)

// ErrOrderLocked is the base error matched by errors.Is for any lock.
var ErrOrderLocked = errors.New("orders: order locked")

// LockedError carries the reason an edit was refused.
type LockedError struct {
	OrderID int64
	Cause   LockCause
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("orders: order %d locked (%s)", e.OrderID, e.Cause)
}

func (e *LockedError) Unwrap() error { return ErrOrderLocked }

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("orders: not found")
	// ErrEmptyOrder occurs when no item with quantity > 0 would remain.
	ErrEmptyOrder = errors.New("orders: at least one item with quantity > 0 required")
	// ErrDuplicateProduct occurs when a product appears twice in one order.
	ErrDuplicateProduct = errors.New("orders: duplicate product in order")
	// ErrInvalidState occurs when action violates the status workflow.
	ErrInvalidState = errors.New("orders: invalid state transition")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("orders: invalid input")
)
