package receiving

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/khlang-erp/khlang-erp/internal/platform/httpx"
	"github.com/khlang-erp/khlang-erp/internal/shared"
)

// Handler manages receiving endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Put("/", h.handleUpdate)
	r.Post("/unlock", h.handleUnlock)
	r.Post("/manual", h.handleCreateManual)
	r.Get("/manual", h.handleListManual)
}

type receiptRequest struct {
	OrderItemID      int64   `json:"order_item_id"`
	ProductID        int64   `json:"product_id"`
	ReceivedQuantity float64 `json:"received_quantity" validate:"gte=0"`
}

type updateRequest struct {
	Date  string           `json:"date" validate:"required,datetime=2006-01-02"`
	Items []receiptRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	identity := shared.IdentityFromContext(r.Context())
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "mine":
		lines, err := h.service.ListMine(r.Context(), date, identity.UserID)
		if err != nil {
			h.respondServiceError(w, err, "receiving list mine")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": linesToJSON(lines)})
	case "branch":
		products, err := h.service.ListBranch(r.Context(), date, identity.BranchID)
		if err != nil {
			h.respondServiceError(w, err, "receiving list branch")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"products": branchToJSON(products)})
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "scope must be mine or branch")
	}
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	identity := shared.IdentityFromContext(r.Context())

	var results []UpdateResult
	var err error
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "mine":
		receipts := make([]ItemReceipt, 0, len(req.Items))
		for _, item := range req.Items {
			if item.OrderItemID <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order_item_id required for scope mine")
				return
			}
			receipts = append(receipts, ItemReceipt{OrderItemID: item.OrderItemID, ReceivedQuantity: item.ReceivedQuantity})
		}
		results, err = h.service.UpdateMine(r.Context(), receipts, identity.UserID)
	case "branch":
		receipts := make([]ProductReceipt, 0, len(req.Items))
		for _, item := range req.Items {
			if item.ProductID <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id required for scope branch")
				return
			}
			receipts = append(receipts, ProductReceipt{ProductID: item.ProductID, ReceivedQuantity: item.ReceivedQuantity})
		}
		results, err = h.service.UpdateBranch(r.Context(), date, identity.BranchID, receipts, identity.UserID)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "scope must be mine or branch")
		return
	}
	if err != nil {
		h.respondServiceError(w, err, "receiving update")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": results})
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderItemID int64 `json:"order_item_id" validate:"required,gt=0"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.IdentityFromContext(r.Context()).UserID
	if err := h.service.UnlockItem(r.Context(), req.OrderItemID, actor); err != nil {
		h.respondServiceError(w, err, "receiving unlock")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type manualRequest struct {
	Date             string  `json:"date" validate:"required,datetime=2006-01-02"`
	ProductID        int64   `json:"product_id" validate:"required,gt=0"`
	ReceivedQuantity float64 `json:"received_quantity"`
	ReceiveNotes     string  `json:"receive_notes"`
}

func (h *Handler) handleCreateManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	identity := shared.IdentityFromContext(r.Context())
	item, err := h.service.CreateManual(r.Context(), ManualInput{
		Date:             date,
		BranchID:         identity.BranchID,
		DepartmentID:     identity.DepartmentID,
		ProductID:        req.ProductID,
		ReceivedQuantity: req.ReceivedQuantity,
		Reason:           req.ReceiveNotes,
		ActorID:          identity.UserID,
	})
	if err != nil {
		h.respondServiceError(w, err, "receiving manual create")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"item": manualToJSON(item)})
}

func (h *Handler) handleListManual(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	items, err := h.service.ListManual(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, err, "receiving manual list")
		return
	}
	out := make([]manualJSON, 0, len(items))
	for _, item := range items {
		out = append(out, manualToJSON(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrItemLocked):
		httpx.Problem(w, http.StatusConflict, "Item Locked", err.Error())
	case errors.Is(err, ErrNotOwned):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidManualReceipt):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Manual Receipt", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

type lineJSON struct {
	OrderItemID      int64     `json:"order_item_id"`
	OrderID          int64     `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
	ProductID        int64     `json:"product_id"`
	ProductName      string    `json:"product_name"`
	UnitAbbr         string    `json:"unit_abbr"`
	GroupID          *int64    `json:"product_group_id"`
	GroupName        string    `json:"product_group_name"`
	OrderedQuantity  float64   `json:"ordered_quantity"`
	ExpectedQuantity float64   `json:"expected_quantity"`
	PurchaseReason   string    `json:"purchase_reason,omitempty"`
	ReceivedQuantity *float64  `json:"received_quantity"`
	ReceivedAt       *string   `json:"received_at"`
	Locked           bool      `json:"locked"`
	Diff             DiffClass `json:"diff,omitempty"`
}

func lineToJSON(line Line) lineJSON {
	lj := lineJSON{
		OrderItemID:      line.ItemID,
		OrderID:          line.OrderID,
		OrderNumber:      line.OrderNumber,
		ProductID:        line.ProductID,
		ProductName:      line.ProductName,
		UnitAbbr:         line.UnitAbbr,
		GroupID:          line.GroupID,
		GroupName:        line.GroupName,
		OrderedQuantity:  line.OrderedQuantity,
		ExpectedQuantity: line.ExpectedQuantity(),
		PurchaseReason:   line.PurchaseReason,
		ReceivedQuantity: line.ReceivedQuantity,
		Locked:           line.Locked(),
	}
	if line.ReceivedAt != nil {
		ts := line.ReceivedAt.UTC().Format(time.RFC3339)
		lj.ReceivedAt = &ts
	}
	if line.ReceivedQuantity != nil {
		lj.Diff = Classify(line.ExpectedQuantity(), *line.ReceivedQuantity)
	}
	return lj
}

func linesToJSON(lines []Line) []lineJSON {
	out := make([]lineJSON, 0, len(lines))
	for _, line := range lines {
		out = append(out, lineToJSON(line))
	}
	return out
}

type branchProductJSON struct {
	ProductID        int64      `json:"product_id"`
	ProductName      string     `json:"product_name"`
	UnitAbbr         string     `json:"unit_abbr"`
	GroupID          *int64     `json:"product_group_id"`
	GroupName        string     `json:"product_group_name"`
	ExpectedQuantity float64    `json:"expected_quantity"`
	ReceivedQuantity float64    `json:"received_quantity"`
	AllReceived      bool       `json:"all_received"`
	Diff             DiffClass  `json:"diff"`
	Items            []lineJSON `json:"items"`
}

func branchToJSON(products []BranchProduct) []branchProductJSON {
	out := make([]branchProductJSON, 0, len(products))
	for _, p := range products {
		out = append(out, branchProductJSON{
			ProductID:        p.ProductID,
			ProductName:      p.ProductName,
			UnitAbbr:         p.UnitAbbr,
			GroupID:          p.GroupID,
			GroupName:        p.GroupName,
			ExpectedQuantity: p.ExpectedQuantity,
			ReceivedQuantity: p.ReceivedQuantity,
			AllReceived:      p.AllReceived,
			Diff:             p.Diff,
			Items:            linesToJSON(p.Items),
		})
	}
	return out
}

type manualJSON struct {
	ID               int64   `json:"id"`
	ReceiveDate      string  `json:"receive_date"`
	BranchID         int64   `json:"branch_id"`
	DepartmentID     int64   `json:"department_id"`
	ProductID        int64   `json:"product_id"`
	ProductName      string  `json:"product_name,omitempty"`
	ReceivedQuantity float64 `json:"received_quantity"`
	Reason           string  `json:"receive_notes"`
	CreatedBy        int64   `json:"created_by"`
	CreatedAt        string  `json:"created_at"`
}

func manualToJSON(item ManualItem) manualJSON {
	return manualJSON{
		ID:               item.ID,
		ReceiveDate:      item.ReceiveDate.Format("2006-01-02"),
		BranchID:         item.BranchID,
		DepartmentID:     item.DepartmentID,
		ProductID:        item.ProductID,
		ProductName:      item.ProductName,
		ReceivedQuantity: item.ReceivedQuantity,
		Reason:           item.Reason,
		CreatedBy:        item.CreatedBy,
		CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
	}
}
