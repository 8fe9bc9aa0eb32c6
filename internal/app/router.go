package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/khlang-erp/khlang-erp/internal/aggregation"
	"github.com/khlang-erp/khlang-erp/internal/audit"
	"github.com/khlang-erp/khlang-erp/internal/auth"
	"github.com/khlang-erp/khlang-erp/internal/masterdata"
	"github.com/khlang-erp/khlang-erp/internal/orderday"
	"github.com/khlang-erp/khlang-erp/internal/orders"
	"github.com/khlang-erp/khlang-erp/internal/purchasing"
	"github.com/khlang-erp/khlang-erp/internal/receiving"
	"github.com/khlang-erp/khlang-erp/internal/shared"
	"github.com/khlang-erp/khlang-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	MasterdataHandler  *masterdata.Handler
	OrderDayHandler    *orderday.Handler
	OrdersHandler      *orders.Handler
	AggregationHandler *aggregation.Handler
	PurchasingHandler  *purchasing.Handler
	ReceivingHandler   *receiving.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Khlang defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	// Staff surface: gate visibility, own orders, receiving.
	r.Route("/orders", func(r chi.Router) {
		r.Use(RequireRole(""))
		params.OrderDayHandler.MountRoutes(r)
		params.OrdersHandler.MountRoutes(r)
		r.Route("/receiving", func(r chi.Router) {
			params.ReceivingHandler.MountRoutes(r)
		})
		r.Route("/masterdata", func(r chi.Router) {
			params.MasterdataHandler.MountRoutes(r)
		})
	})

	// Admin surface: gate control, worklists, purchasing, resets.
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireRole("admin"))
		r.Route("/orders", func(r chi.Router) {
			params.OrderDayHandler.MountAdminRoutes(r)
			params.AggregationHandler.MountRoutes(r)
			params.OrdersHandler.MountAdminRoutes(r)
		})
		r.Route("/purchases", func(r chi.Router) {
			params.PurchasingHandler.MountRoutes(r)
		})
		r.Route("/audit", func(r chi.Router) {
			params.AuditHandler.MountRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(RequireRole("admin"))
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
