package aggregation

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khlang-erp/khlang-erp/internal/platform/httpx"
)

// ItemSource supplies the flat denormalized rows for a date. Backed by
// the orders repository; status filters on the order status code.
type ItemSource interface {
	ListItemsForDate(ctx context.Context, date time.Time, status string) ([]Item, error)
}

// PriceSource builds a read-only snapshot of historical prices for the
// products present in a worklist.
type PriceSource interface {
	PriceSnapshot(ctx context.Context, productIDs []int64) (PriceLookup, error)
}

// Handler serves the admin aggregation views.
type Handler struct {
	logger *slog.Logger
	items  ItemSource
	prices PriceSource
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, items ItemSource, prices PriceSource) *Handler {
	return &Handler{logger: logger, items: items, prices: prices}
}

// MountRoutes registers aggregation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.handleListItems)
	r.Get("/aggregate", h.handleAggregate)
	r.Get("/worklist", h.handleWorklist)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	items, err := h.items.ListItemsForDate(r.Context(), date, r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": itemsJSON(items)})
}

func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	dim := Dimension(r.URL.Query().Get("dim"))
	switch dim {
	case DimensionSupplier, DimensionBranch, DimensionDepartment, DimensionAll:
	case "":
		dim = DimensionSupplier
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dim must be supplier, branch, department or all")
		return
	}

	status := r.URL.Query().Get("status")
	loaded, err, _ := singleflightLoad(r.Context(), r.URL.Query().Get("date")+"|"+status, func(ctx context.Context) (any, error) {
		return h.items.ListItemsForDate(ctx, date, status)
	})
	if err != nil {
		h.logger.Error("aggregate load", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := loaded.([]Item)
	lookup, err := h.priceSnapshot(r.Context(), items)
	if err != nil {
		h.logger.Error("aggregate prices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	groups := Aggregate(items, dim, lookup)
	httpx.JSON(w, http.StatusOK, map[string]any{"dimension": dim, "groups": groupsJSON(groups)})
}

// handleWorklist serves one supplier's purchasing screen: the group's
// products with unpurchased lines first.
func (h *Handler) handleWorklist(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	groupID, err := strconv.ParseInt(r.URL.Query().Get("group_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "group_id must be an integer")
		return
	}
	items, err := h.items.ListItemsForDate(r.Context(), date, r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("worklist load", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	var scoped []Item
	for _, item := range items {
		if item.GroupID != nil && *item.GroupID == groupID {
			scoped = append(scoped, item)
		}
	}
	lookup, err := h.priceSnapshot(r.Context(), scoped)
	if err != nil {
		h.logger.Error("worklist prices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	products := SupplierWorklist(scoped, lookup)
	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, productJSON{
			ProductID:     p.ProductID,
			ProductName:   p.ProductName,
			UnitAbbr:      p.UnitAbbr,
			TotalQuantity: p.TotalQuantity,
			UnitPrice:     p.UnitPrice,
			TotalAmount:   p.TotalAmount,
			AllPurchased:  p.AllPurchased,
			Items:         itemsJSON(p.Items),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_group_id": groupID, "products": out})
}

func (h *Handler) priceSnapshot(ctx context.Context, items []Item) (PriceLookup, error) {
	if h.prices == nil {
		return NoPrices{}, nil
	}
	seen := make(map[int64]struct{}, len(items))
	var ids []int64
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return h.prices.PriceSnapshot(ctx, ids)
}

type itemJSON struct {
	OrderItemID    int64    `json:"order_item_id"`
	OrderID        int64    `json:"order_id"`
	OrderNumber    string   `json:"order_number"`
	ProductID      int64    `json:"product_id"`
	ProductName    string   `json:"product_name"`
	UnitAbbr       string   `json:"unit_abbr"`
	GroupID        *int64   `json:"product_group_id"`
	GroupName      string   `json:"product_group_name"`
	BranchID       *int64   `json:"branch_id"`
	BranchName     string   `json:"branch_name"`
	DepartmentID   *int64   `json:"department_id"`
	DepartmentName string   `json:"department_name"`
	Quantity       float64  `json:"quantity"`
	RequestedPrice *float64 `json:"requested_price"`
	ActualPrice    *float64 `json:"actual_price"`
	IsPurchased    bool     `json:"is_purchased"`
	PurchaseReason string   `json:"purchase_reason,omitempty"`
}

type productJSON struct {
	ProductID     int64      `json:"product_id"`
	ProductName   string     `json:"product_name"`
	UnitAbbr      string     `json:"unit_abbr"`
	TotalQuantity float64    `json:"total_quantity"`
	UnitPrice     *float64   `json:"unit_price"`
	TotalAmount   *float64   `json:"total_amount"`
	AllPurchased  bool       `json:"all_purchased"`
	Items         []itemJSON `json:"items"`
}

type groupJSON struct {
	GroupID  *int64        `json:"group_id"`
	Name     string        `json:"name"`
	Products []productJSON `json:"products,omitempty"`
	Children []groupJSON   `json:"children,omitempty"`
}

func itemsJSON(items []Item) []itemJSON {
	out := make([]itemJSON, 0, len(items))
	for _, it := range items {
		out = append(out, itemJSON(it))
	}
	return out
}

func groupsJSON(groups []Group) []groupJSON {
	out := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		gj := groupJSON{Name: g.Name}
		if g.Key.Known {
			id := g.Key.ID
			gj.GroupID = &id
		}
		for _, p := range g.Products {
			gj.Products = append(gj.Products, productJSON{
				ProductID:     p.ProductID,
				ProductName:   p.ProductName,
				UnitAbbr:      p.UnitAbbr,
				TotalQuantity: p.TotalQuantity,
				UnitPrice:     p.UnitPrice,
				TotalAmount:   p.TotalAmount,
				AllPurchased:  p.AllPurchased,
				Items:         itemsJSON(p.Items),
			})
		}
		gj.Children = groupsJSON(g.Children)
		out = append(out, gj)
	}
	return out
}
