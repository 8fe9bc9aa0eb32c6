// Package receiving reconciles goods arriving at a branch against what
// the buyer recorded as purchased.
package receiving

import (
	"errors"
	"time"
)

// Suggested reasons for a manual receiving item. Free text is accepted.
const (
	ManualReasonWrongPurchase = "ไม่ได้สั่งแต่ซื้อผิด"
	ManualReasonOffCycle      = "สั่งนอกรอบ"
	ManualReasonOther         = "อื่นๆ"
)

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("receiving: not found")
	// ErrItemLocked occurs when an already received item is edited
	// without unlocking it first.
	ErrItemLocked = errors.New("receiving: item already received")
	// ErrNotOwned occurs when a mine-scope write targets an item that
	// belongs to another user.
	ErrNotOwned = errors.New("receiving: item belongs to another user")
	// ErrInvalidManualReceipt occurs when a manual item lacks a reason
	// or a positive quantity.
	ErrInvalidManualReceipt = errors.New("receiving: manual item needs a reason and quantity > 0")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("receiving: invalid input")
)

// DiffClass is the three-way comparison of received against expected.
type DiffClass string

const (
	DiffShort   DiffClass = "SHORT"
	DiffExact   DiffClass = "EXACT"
	DiffSurplus DiffClass = "SURPLUS"
)

// Classify compares received to expected within a small tolerance.
func Classify(expected, received float64) DiffClass {
	const eps = 1e-9
	switch {
	case received < expected-eps:
		return DiffShort
	case received > expected+eps:
		return DiffSurplus
	default:
		return DiffExact
	}
}

// Line is one order item as seen by receiving. ExpectedQuantity is what
// should arrive: the purchased quantity when the buyer recorded one,
// otherwise the ordered quantity. PurchaseReason carries the buyer's
// shortage note, empty when there is none.
type Line struct {
	ItemID           int64
	OrderID          int64
	OrderNumber      string
	UserID           int64
	BranchID         int64
	ProductID        int64
	ProductName      string
	UnitAbbr         string
	GroupID          *int64
	GroupName        string
	OrderedQuantity  float64
	ActualQuantity   *float64
	PurchaseReason   string
	ReceivedQuantity *float64
	ReceivedAt       *time.Time
}

// ExpectedQuantity returns the quantity receiving checks against.
func (l Line) ExpectedQuantity() float64 {
	if l.ActualQuantity != nil {
		return *l.ActualQuantity
	}
	return l.OrderedQuantity
}

// Locked reports whether the line was already received.
func (l Line) Locked() bool { return l.ReceivedAt != nil }

// ManualItem records goods that arrived without a matching order line.
// It is attributed to the branch and department that recorded it and
// never feeds back into order status.
type ManualItem struct {
	ID               int64
	ReceiveDate      time.Time
	BranchID         int64
	DepartmentID     int64
	ProductID        int64
	ProductName      string
	ReceivedQuantity float64
	Reason           string
	CreatedBy        int64
	CreatedAt        time.Time
}
