package purchasing

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

// Handler manages purchase reconciliation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers admin purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Put("/by-product", h.handleRecordByProduct)
	r.Post("/complete-by-product-group", h.handleCompleteByGroup)
}

type recordRequest struct {
	Date           string   `json:"date" validate:"required,datetime=2006-01-02"`
	ProductID      int64    `json:"product_id" validate:"required,gt=0"`
	ActualPrice    *float64 `json:"actual_price"`
	ActualQuantity *float64 `json:"actual_quantity"`
	IsPurchased    bool     `json:"is_purchased"`
	Reason         string   `json:"reason"`
}

func (h *Handler) handleRecordByProduct(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	results, err := h.service.RecordByProduct(r.Context(), RecordInput{
		Date:           date,
		ProductID:      req.ProductID,
		ActualPrice:    req.ActualPrice,
		ActualQuantity: req.ActualQuantity,
		IsPurchased:    req.IsPurchased,
		Reason:         req.Reason,
		ActorID:        shared.IdentityFromContext(r.Context()).UserID,
	})
	if err != nil {
		h.respondServiceError(w, err, "purchase record")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": results})
}

type completeRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	GroupID int64  `json:"product_group_id" validate:"required,gt=0"`
}

func (h *Handler) handleCompleteByGroup(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
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
	updated, err := h.service.CompleteByGroup(r.Context(), date, req.GroupID, actor)
	if err != nil {
		h.respondServiceError(w, err, "purchase complete group")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, op string) {
	var incomplete *IncompletePurchaseError
	switch {
	case errors.As(err, &incomplete):
		httpx.ProblemWithFields(w, http.StatusConflict, "Incomplete Purchase", err.Error(), map[string]any{
			"items": incomplete.Items,
		})
	case errors.Is(err, ErrReasonRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Reason Required", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
