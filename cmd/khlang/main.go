package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/khlang-erp/khlang-erp/internal/aggregation"
	"github.com/khlang-erp/khlang-erp/internal/app"
	"github.com/khlang-erp/khlang-erp/internal/audit"
	"github.com/khlang-erp/khlang-erp/internal/auth"
	"github.com/khlang-erp/khlang-erp/internal/masterdata"
	"github.com/khlang-erp/khlang-erp/internal/orderday"
	"github.com/khlang-erp/khlang-erp/internal/orders"
	"github.com/khlang-erp/khlang-erp/internal/platform/cache"
	"github.com/khlang-erp/khlang-erp/internal/platform/db"
	"github.com/khlang-erp/khlang-erp/internal/purchasing"
	"github.com/khlang-erp/khlang-erp/internal/receiving"
	"github.com/khlang-erp/khlang-erp/internal/shared"
	"github.com/khlang-erp/khlang-erp/jobs"
)

// itemSource adapts the orders service to the string-typed status filter
// the aggregation handler expects.
type itemSource struct {
	service *orders.Service
}

func (s itemSource) ListItemsForDate(ctx context.Context, date time.Time, status string) ([]aggregation.Item, error) {
	return s.service.ListItemDetails(ctx, date, orders.Status(status))
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "khlang_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	var notifier *jobs.LineNotifier
	if cfg.LineTarget != "" {
		notifier = jobs.NewLineNotifier(jobClient, cfg.LineTarget)
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	gateRepo := orderday.NewRepository(pool)
	gateService := orderday.NewService(gateRepo, auditLogger, gateNotifier(notifier))
	gateHandler := orderday.NewHandler(logger, gateService)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, gateService, auditLogger)
	ordersHandler := orders.NewHandler(logger, ordersService)

	masterRepo := masterdata.NewRepository(pool)
	masterdataHandler := masterdata.NewHandler(logger, masterRepo)
	aggregationHandler := aggregation.NewHandler(logger, itemSource{service: ordersService}, masterRepo)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, purchaseNotifier(notifier), auditLogger)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService)

	receivingRepo := receiving.NewRepository(pool)
	receivingService := receiving.NewService(receivingRepo, auditLogger)
	receivingHandler := receiving.NewHandler(logger, receivingService)

	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool)))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		MasterdataHandler:  masterdataHandler,
		OrderDayHandler:    gateHandler,
		OrdersHandler:      ordersHandler,
		AggregationHandler: aggregationHandler,
		PurchasingHandler:  purchasingHandler,
		ReceivingHandler:   receivingHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("khlang listening", slog.String("addr", cfg.AppAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// gateNotifier keeps a nil *LineNotifier from reaching the service as a
// non-nil interface.
func gateNotifier(n *jobs.LineNotifier) orderday.NotifierPort {
	if n == nil {
		return nil
	}
	return n
}

func purchaseNotifier(n *jobs.LineNotifier) purchasing.NotifierPort {
	if n == nil {
		return nil
	}
	return n
}
