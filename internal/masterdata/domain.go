// Package masterdata provides read-only lookups over the reference
// tables. The write side lives in a separate back-office tool; this
// service only reads names, units and historical prices.
package masterdata

import "errors"

// ErrNotFound indicates record missing.
var ErrNotFound = errors.New("masterdata: not found")

// Product is one orderable product. GroupID is already canonical: rows
// that still carry only the legacy supplier id are aliased inside the
// repository.
type Product struct {
	ID        int64
	Name      string
	UnitID    *int64
	UnitAbbr  string
	GroupID   *int64
	GroupName string
	IsActive  bool
}

// ProductGroup is the purchasing category, historically called supplier.
type ProductGroup struct {
	ID   int64
	Name string
}

// Branch is one restaurant location.
type Branch struct {
	ID   int64
	Name string
}

// Department is a kitchen section within a branch.
type Department struct {
	ID   int64
	Name string
}

// PriceSnapshot is a point-in-time map of last purchased prices.
type PriceSnapshot map[int64]float64

// LastActualPrice implements the aggregation price lookup.
func (s PriceSnapshot) LastActualPrice(productID int64) (float64, bool) {
	price, ok := s[productID]
	return price, ok
}
