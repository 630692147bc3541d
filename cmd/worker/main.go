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

	"github.com/odyssey-erp/odyssey-receivables/internal/app"
	"github.com/odyssey-erp/odyssey-receivables/internal/observability"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/db"
	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
	"github.com/odyssey-erp/odyssey-receivables/internal/shared"
	"github.com/odyssey-erp/odyssey-receivables/jobs"
)

const metricsAddr = ":9091"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.StoreDriver != app.StorePostgres {
		slog.Default().Error("worker requires STORE_DRIVER=postgres")
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	repo := receivables.NewRepository(pool)
	service := receivables.NewService(repo, receivables.ServiceConfig{
		Cache:  receivables.NewReportCache(redisClient, cfg.ReportCacheTTL),
		Locker: receivables.NewRedisLocker(redisClient, cfg.AccountLockTTL),
		Logger: logger,
	})

	movementJob := jobs.NewMovementJob(repo, shared.NewAuditLogger(pool), logger, metrics.Jobs())
	scanJob := jobs.NewDelinquencyScanJob(service, metrics.Ledger(), logger, metrics.Jobs())
	cleanupJob := &jobs.IdempotencyCleanupJob{
		Keys:    shared.NewIdempotencyStore(pool),
		Logger:  logger,
		Metrics: metrics.Jobs(),
	}

	scanTask, err := jobs.NewDelinquencyScanTask(time.Time{})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPaymentApplied, Handler: movementJob.Handle},
			{Type: jobs.TaskDelinquencyScan, Handler: scanJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DelinquencyScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.String("scan_cron", cfg.DelinquencyScanCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
