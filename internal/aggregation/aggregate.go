package aggregation

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Aggregate partitions items along the dimension, consolidates each group
// per product and sorts everything with Thai collation. DimensionAll
// yields a single synthetic group with supplier groups nested beneath it.
func Aggregate(items []Item, dim Dimension, prices PriceLookup) []Group {
	if prices == nil {
		prices = NoPrices{}
	}
	if dim == DimensionAll {
		return []Group{rollupAll(items, prices)}
	}

	buckets := make(map[GroupKey][]Item)
	names := make(map[GroupKey]string)
	for _, item := range items {
		key, name := groupOf(item, dim)
		buckets[key] = append(buckets[key], item)
		names[key] = name
	}

	cl := collate.New(language.Thai)
	groups := make([]Group, 0, len(buckets))
	for key, members := range buckets {
		groups = append(groups, Group{
			Key:      key,
			Name:     names[key],
			Products: consolidate(members, prices, cl),
		})
	}
	sortGroups(groups, cl)
	return groups
}

// SupplierWorklist consolidates one supplier's items for the purchasing
// screen: products not yet purchased come first, then purchased, each
// bucket alphabetical.
func SupplierWorklist(items []Item, prices PriceLookup) []ProductTotal {
	if prices == nil {
		prices = NoPrices{}
	}
	cl := collate.New(language.Thai)
	products := consolidate(items, prices, cl)
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].AllPurchased != products[j].AllPurchased {
			return !products[i].AllPurchased
		}
		if c := cl.CompareString(products[i].ProductName, products[j].ProductName); c != 0 {
			return c < 0
		}
		return products[i].ProductID < products[j].ProductID
	})
	return products
}

func rollupAll(items []Item, prices PriceLookup) Group {
	return Group{
		Key:      UnattributedKey(),
		Name:     "ทุกหมวดสินค้า",
		Children: Aggregate(items, DimensionSupplier, prices),
	}
}

func groupOf(item Item, dim Dimension) (GroupKey, string) {
	switch dim {
	case DimensionBranch:
		if item.BranchID != nil {
			return IdentifiedKey(*item.BranchID), item.BranchName
		}
		return UnattributedKey(), labelNoBranch
	case DimensionDepartment:
		if item.DepartmentID != nil {
			return IdentifiedKey(*item.DepartmentID), item.DepartmentName
		}
		return UnattributedKey(), labelNoDepartment
	default:
		if item.GroupID != nil {
			return IdentifiedKey(*item.GroupID), item.GroupName
		}
		return UnattributedKey(), labelNoSupplier
	}
}

// consolidate sums each product's quantity and resolves one display
// price: actual (already purchased), then requested, then the last known
// historical price.
func consolidate(items []Item, prices PriceLookup, cl *collate.Collator) []ProductTotal {
	byProduct := make(map[int64][]Item)
	for _, item := range items {
		byProduct[item.ProductID] = append(byProduct[item.ProductID], item)
	}

	products := make([]ProductTotal, 0, len(byProduct))
	for productID, members := range byProduct {
		members = append([]Item(nil), members...)
		sort.Slice(members, func(i, j int) bool { return members[i].OrderItemID < members[j].OrderItemID })

		total := ProductTotal{
			ProductID:    productID,
			ProductName:  members[0].ProductName,
			UnitAbbr:     members[0].UnitAbbr,
			AllPurchased: true,
			Items:        members,
		}
		for _, m := range members {
			total.TotalQuantity += m.Quantity
			if !m.IsPurchased {
				total.AllPurchased = false
			}
		}
		total.UnitPrice = resolvePrice(members, prices)
		if total.UnitPrice != nil {
			amount := total.TotalQuantity * *total.UnitPrice
			total.TotalAmount = &amount
		}
		products = append(products, total)
	}

	sort.SliceStable(products, func(i, j int) bool {
		if c := cl.CompareString(products[i].ProductName, products[j].ProductName); c != 0 {
			return c < 0
		}
		return products[i].ProductID < products[j].ProductID
	})
	return products
}

func resolvePrice(members []Item, prices PriceLookup) *float64 {
	for _, m := range members {
		if m.ActualPrice != nil {
			price := *m.ActualPrice
			return &price
		}
	}
	for _, m := range members {
		if m.RequestedPrice != nil {
			price := *m.RequestedPrice
			return &price
		}
	}
	if price, ok := prices.LastActualPrice(members[0].ProductID); ok {
		return &price
	}
	return nil
}

// sortGroups orders named groups alphabetically, unattributed last.
func sortGroups(groups []Group, cl *collate.Collator) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Key.Known != groups[j].Key.Known {
			return groups[i].Key.Known
		}
		if c := cl.CompareString(groups[i].Name, groups[j].Name); c != 0 {
			return c < 0
		}
		return groups[i].Key.ID < groups[j].Key.ID
	})
}
