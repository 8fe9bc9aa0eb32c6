package orderday

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

// Handler manages day-gate endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers staff-facing gate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Get("/status/range", h.handleStatusRange)
}

// MountAdminRoutes registers open/close routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/open", h.handleOpen)
	r.Post("/close", h.handleClose)
}

type gateRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	BranchID int64  `json:"branch_id"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	branchID := branchFromRequest(r)
	open, err := h.service.IsOpen(r.Context(), date, branchID)
	if err != nil {
		h.logger.Error("gate status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"is_open": open})
}

func (h *Handler) handleStatusRange(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	statuses, err := h.service.Statuses(r.Context(), from, to, branchFromRequest(r))
	if err != nil {
		if errors.Is(err, ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("gate range", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type dayJSON struct {
		Date   string `json:"date"`
		IsOpen bool   `json:"is_open"`
	}
	out := make([]dayJSON, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, dayJSON{Date: st.OrderDate.Format("2006-01-02"), IsOpen: st.IsOpen})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"days": out})
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGateRequest(w, r)
	if !ok {
		return
	}
	date, _ := parseDate(req.Date)
	actor := shared.IdentityFromContext(r.Context()).UserID
	if err := h.service.Open(r.Context(), date, req.BranchID, actor); err != nil {
		if errors.Is(err, ErrOutOfWindow) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Out Of Window", err.Error())
			return
		}
		h.logger.Error("gate open", slog.Any("error", err), slog.String("date", req.Date))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGateRequest(w, r)
	if !ok {
		return
	}
	date, _ := parseDate(req.Date)
	actor := shared.IdentityFromContext(r.Context()).UserID
	if err := h.service.Close(r.Context(), date, req.BranchID, actor); err != nil {
		h.logger.Error("gate close", slog.Any("error", err), slog.String("date", req.Date))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeGateRequest(w http.ResponseWriter, r *http.Request) (gateRequest, bool) {
	var req gateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return gateRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return gateRequest{}, false
	}
	return req, true
}

func branchFromRequest(r *http.Request) int64 {
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		id, _ := strconv.ParseInt(raw, 10, 64)
		return id
	}
	return shared.IdentityFromContext(r.Context()).BranchID
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
