package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khlang-erp/khlang-erp/internal/platform/httpx"
)

// Handler serves the admin audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleTimeline)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, timelineJSON(result))
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	var filters TimelineFilters
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return TimelineFilters{}, err
		}
		filters.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return TimelineFilters{}, err
		}
		// Inclusive end of day.
		filters.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if raw := q.Get("actor_id"); raw != "" {
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return TimelineFilters{}, err
		}
		filters.ActorID = actorID
	}
	filters.Entity = q.Get("entity")
	filters.Action = q.Get("action")
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	return filters, nil
}

type rowJSON struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func timelineJSON(result Result) map[string]any {
	rows := make([]rowJSON, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, rowJSON(row))
	}
	return map[string]any{
		"rows": rows,
		"paging": map[string]any{
			"page":        result.Paging.Page,
			"per_page":    result.Paging.PerPage,
			"total":       result.Paging.Total,
			"total_pages": result.Paging.TotalPages,
		},
	}
}
