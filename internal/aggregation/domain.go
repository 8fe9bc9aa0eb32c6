// Package aggregation regroups flat order-item rows into nested views for
// purchasing worklists and reports. Everything here is pure: inputs are
// never mutated and the same input always produces the same output.
package aggregation

// Dimension selects the grouping axis.
type Dimension string

const (
	DimensionSupplier   Dimension = "supplier"
	DimensionBranch     Dimension = "branch"
	DimensionDepartment Dimension = "department"
	DimensionAll        Dimension = "all"
)

// GroupKey identifies a group. Unattributed keys stand in for rows whose
// grouping dimension is null, so they can never collide with a real id.
type GroupKey struct {
	ID    int64
	Known bool
}

// IdentifiedKey builds a key for a real dimension id.
func IdentifiedKey(id int64) GroupKey { return GroupKey{ID: id, Known: true} }

// UnattributedKey builds the fallback key for rows without the dimension.
func UnattributedKey() GroupKey { return GroupKey{} }

// Unattributed group labels, one per dimension.
const (
	labelNoSupplier   = "ไม่ระบุหมวดสินค้า"
	labelNoBranch     = "ไม่ระบุสาขา"
	labelNoDepartment = "ไม่ระบุแผนก"
)

// Item is a denormalized order-item row as produced by the orders
// repository. Names come pre-joined from master data; nil pointers mean
// the dimension or price is unknown.
type Item struct {
	OrderItemID    int64
	OrderID        int64
	OrderNumber    string
	ProductID      int64
	ProductName    string
	UnitAbbr       string
	GroupID        *int64
	GroupName      string
	BranchID       *int64
	BranchName     string
	DepartmentID   *int64
	DepartmentName string
	Quantity       float64
	RequestedPrice *float64
	ActualPrice    *float64
	IsPurchased    bool
	PurchaseReason string
}

// PriceLookup supplies the historical fallback price. Injected so the
// grouping stays free of storage concerns; implementations are read-only
// snapshots.
type PriceLookup interface {
	LastActualPrice(productID int64) (float64, bool)
}

// NoPrices is a PriceLookup that knows nothing.
type NoPrices struct{}

// LastActualPrice always reports no price.
func (NoPrices) LastActualPrice(int64) (float64, bool) { return 0, false }

// ProductTotal is the per-product consolidation inside a group. UnitPrice
// and TotalAmount stay nil when no price is resolvable: "price unknown"
// is not the same as "free".
type ProductTotal struct {
	ProductID     int64
	ProductName   string
	UnitAbbr      string
	TotalQuantity float64
	UnitPrice     *float64
	TotalAmount   *float64
	AllPurchased  bool
	Items         []Item
}

// Group is one bucket of the chosen dimension. Children is populated only
// by the all-suppliers roll-up.
type Group struct {
	Key      GroupKey
	Name     string
	Products []ProductTotal
	Children []Group
}
