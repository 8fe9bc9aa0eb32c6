package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/khlang-erp/khlang-erp/internal/platform/httpx"
	"github.com/khlang-erp/khlang-erp/internal/shared"
)

// Handler manages order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers staff-facing order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleListMine)
	r.Get("/{orderID}", h.handleGet)
	r.Put("/{orderID}", h.handleUpdate)
	r.Delete("/{orderID}", h.handleDelete)
	r.Post("/{orderID}/submit", h.handleSubmit)
	r.Post("/{orderID}/cancel", h.handleCancel)
}

// MountAdminRoutes registers the reset correction endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/{orderID}/reset", h.handleReset)
	r.Post("/reset", h.handleResetDay)
	r.Post("/reset-all", h.handleResetAll)
}

type itemRequest struct {
	ProductID      int64   `json:"product_id" validate:"required,gt=0"`
	Quantity       float64 `json:"quantity"`
	RequestedPrice float64 `json:"requested_price" validate:"gte=0"`
	Notes          string  `json:"notes"`
}

type createRequest struct {
	OrderDate string        `json:"order_date" validate:"required,datetime=2006-01-02"`
	BranchID  int64         `json:"branch_id"`
	Items     []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateRequest struct {
	Items []itemRequest `json:"items" validate:"required,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.OrderDate)
	identity := shared.IdentityFromContext(r.Context())
	branchID := req.BranchID
	if branchID == 0 {
		branchID = identity.BranchID
	}

	order, err := h.service.Create(r.Context(), CreateInput{
		UserID:       identity.UserID,
		BranchID:     branchID,
		DepartmentID: identity.DepartmentID,
		OrderDate:    date,
		Items:        toItemInputs(req.Items),
	})
	if err != nil {
		h.respondServiceError(w, r, err, "order create")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"order": orderToJSON(order)})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	identity := shared.IdentityFromContext(r.Context())
	orders, err := h.service.ListMine(r.Context(), identity.UserID, date)
	if err != nil {
		h.respondServiceError(w, r, err, "order list")
		return
	}
	out := make([]orderJSON, 0, len(orders))
	for _, order := range orders {
		out = append(out, orderToJSON(order))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	order, items, err := h.service.Get(r.Context(), orderID)
	if err != nil {
		h.respondServiceError(w, r, err, "order get")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": orderToJSON(order), "items": itemsToJSON(items)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.IdentityFromContext(r.Context()).UserID
	order, items, err := h.service.Update(r.Context(), orderID, actor, toItemInputs(req.Items))
	if err != nil {
		h.respondServiceError(w, r, err, "order update")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": orderToJSON(order), "items": itemsToJSON(items)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	actor := shared.IdentityFromContext(r.Context()).UserID
	if err := h.service.Delete(r.Context(), orderID, actor); err != nil {
		h.respondServiceError(w, r, err, "order delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	actor := shared.IdentityFromContext(r.Context()).UserID
	if err := h.service.Submit(r.Context(), orderID, actor); err != nil {
		h.respondServiceError(w, r, err, "order submit")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	actor := shared.IdentityFromContext(r.Context()).UserID
	if err := h.service.Cancel(r.Context(), orderID, actor); err != nil {
		h.respondServiceError(w, r, err, "order cancel")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	actor := shared.IdentityFromContext(r.Context()).UserID
	if err := h.service.Reset(r.Context(), orderID, actor); err != nil {
		h.respondServiceError(w, r, err, "order reset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResetDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date" validate:"required,datetime=2006-01-02"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	actor := shared.IdentityFromContext(r.Context()).UserID
	count, err := h.service.ResetDay(r.Context(), date, actor)
	if err != nil {
		h.respondServiceError(w, r, err, "order reset day")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reset": count})
}

// handleResetAll wipes reconciliation on every order in the system. The
// X-Confirm-Reset header guards against an accidental call; there is no
// undo.
func (h *Handler) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Confirm-Reset") != "all" {
		httpx.Problem(w, http.StatusPreconditionRequired, "Confirmation Required", "set X-Confirm-Reset: all to reset every order")
		return
	}
	actor := shared.IdentityFromContext(r.Context()).UserID
	count, err := h.service.ResetAll(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, r, err, "order reset all")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reset": count})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var locked *LockedError
	switch {
	case errors.As(err, &locked):
		httpx.ProblemWithFields(w, http.StatusConflict, "Order Locked", err.Error(), map[string]any{
			"order_id": locked.OrderID,
			"cause":    locked.Cause,
		})
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptyOrder):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Empty Order", err.Error())
	case errors.Is(err, ErrDuplicateProduct):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Duplicate Product", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order id must be a positive integer")
		return 0, false
	}
	return id, true
}

func toItemInputs(reqs []itemRequest) []ItemInput {
	inputs := make([]ItemInput, 0, len(reqs))
	for _, req := range reqs {
		inputs = append(inputs, ItemInput{
			ProductID:      req.ProductID,
			Quantity:       req.Quantity,
			RequestedPrice: req.RequestedPrice,
			Notes:          req.Notes,
		})
	}
	return inputs
}

type orderJSON struct {
	ID              int64   `json:"id"`
	Number          string  `json:"number"`
	BranchID        int64   `json:"branch_id"`
	DepartmentID    int64   `json:"department_id"`
	UserID          int64   `json:"user_id"`
	OrderDate       string  `json:"order_date"`
	Status          Status  `json:"status"`
	TotalAmount     float64 `json:"total_amount"`
	TransferredFrom *int64  `json:"transferred_from,omitempty"`
}

type orderItemJSON struct {
	ID               int64    `json:"id"`
	ProductID        int64    `json:"product_id"`
	Quantity         float64  `json:"quantity"`
	RequestedPrice   float64  `json:"requested_price"`
	Notes            string   `json:"notes,omitempty"`
	ActualPrice      *float64 `json:"actual_price"`
	ActualQuantity   *float64 `json:"actual_quantity"`
	IsPurchased      bool     `json:"is_purchased"`
	PurchaseReason   *string  `json:"purchase_reason"`
	ReceivedQuantity *float64 `json:"received_quantity"`
	ReceivedAt       *string  `json:"received_at"`
}

func orderToJSON(order Order) orderJSON {
	return orderJSON{
		ID:              order.ID,
		Number:          order.Number,
		BranchID:        order.BranchID,
		DepartmentID:    order.DepartmentID,
		UserID:          order.UserID,
		OrderDate:       order.OrderDate.Format("2006-01-02"),
		Status:          order.Status,
		TotalAmount:     order.TotalAmount,
		TransferredFrom: order.TransferredFrom,
	}
}

func itemsToJSON(items []Item) []orderItemJSON {
	out := make([]orderItemJSON, 0, len(items))
	for _, item := range items {
		ij := orderItemJSON{
			ID:               item.ID,
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			RequestedPrice:   item.RequestedPrice,
			Notes:            item.Notes,
			ActualPrice:      item.ActualPrice,
			ActualQuantity:   item.ActualQuantity,
			IsPurchased:      item.IsPurchased,
			PurchaseReason:   item.PurchaseReason,
			ReceivedQuantity: item.ReceivedQuantity,
		}
		if item.ReceivedAt != nil {
			ts := item.ReceivedAt.UTC().Format(time.RFC3339)
			ij.ReceivedAt = &ts
		}
		out = append(out, ij)
	}
	return out
}
