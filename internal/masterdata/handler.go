package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/khlang-erp/khlang-erp/internal/platform/httpx"
)

// Handler serves read-only reference lookups for the order form.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers lookup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Get("/products/{productID}", h.handleGetProduct)
	r.Get("/product-groups", h.handleListGroups)
	r.Get("/branches", h.handleListBranches)
	r.Get("/departments", h.handleListDepartments)
}

type productJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UnitID    *int64 `json:"unit_id"`
	UnitAbbr  string `json:"unit_abbr"`
	GroupID   *int64 `json:"product_group_id"`
	GroupName string `json:"product_group_name"`
	IsActive  bool   `json:"is_active"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, productJSON(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": out})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product id must be an integer")
		return
	}
	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		if err == ErrNotFound {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
			return
		}
		h.logger.Error("get product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productJSON(product))
}

type namedJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.repo.ListProductGroups(r.Context())
	if err != nil {
		h.logger.Error("list product groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]namedJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, namedJSON(g))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_groups": out})
}

func (h *Handler) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.repo.ListBranches(r.Context())
	if err != nil {
		h.logger.Error("list branches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]namedJSON, 0, len(branches))
	for _, b := range branches {
		out = append(out, namedJSON(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"branches": out})
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.repo.ListDepartments(r.Context())
	if err != nil {
		h.logger.Error("list departments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]namedJSON, 0, len(departments))
	for _, d := range departments {
		out = append(out, namedJSON(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": out})
}
