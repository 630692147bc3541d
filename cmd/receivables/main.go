package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-receivables/cmd/receivables/cli"
	"github.com/odyssey-erp/odyssey-receivables/internal/app"
	"github.com/odyssey-erp/odyssey-receivables/internal/observability"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-receivables/internal/platform/db"
	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
	receivableshttp "github.com/odyssey-erp/odyssey-receivables/internal/receivables/http"
	"github.com/odyssey-erp/odyssey-receivables/internal/shared"
	"github.com/odyssey-erp/odyssey-receivables/jobs"
	"github.com/odyssey-erp/odyssey-receivables/migrations"
)

func main() {
	root := &cobra.Command{
		Use:           "receivables",
		Short:         "Receivables and delinquency engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), migrations.Up)
		},
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), migrations.Down)
		},
	})
	root.AddCommand(migrateCmd)
	root.AddCommand(cli.NewJobsCommand(func() (*cli.JobsCLI, error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, err
		}
		return cli.NewJobsCLI(cfg.RedisAddr)
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Default().Error("receivables", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return nil
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	svcCfg := receivables.ServiceConfig{
		Logger:  logger,
		Metrics: metrics.Ledger(),
	}

	var repo receivables.RepositoryPort
	switch cfg.StoreDriver {
	case app.StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		repo = receivables.NewRepository(pool)
		svcCfg.Idempotency = shared.NewIdempotencyStore(pool)
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		repo = receivables.NewMemoryStore()
		keys := shared.NewMemoryIdempotencyStore()
		svcCfg.Idempotency = keys
		go purgeKeys(ctx, &jobs.IdempotencyCleanupJob{Keys: keys, Logger: logger, Metrics: metrics.Jobs()})
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		if cfg.LockBackend == app.LockRedis {
			return fmt.Errorf("connect redis: %w", err)
		}
		logger.Warn("redis unavailable, report cache and job queue disabled", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		svcCfg.Cache = receivables.NewReportCache(redisClient, cfg.ReportCacheTTL)
		if cfg.StoreDriver == app.StoreMemory {
			// reports cached by a previous process describe data this one never saw
			if err := svcCfg.Cache.Bump(ctx); err != nil {
				logger.Warn("bump report cache", slog.Any("error", err))
			}
		}
	}
	svcCfg.Locker = newLocker(cfg, redisClient)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			return fmt.Errorf("init job client: %w", err)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		svcCfg.Events = jobClient

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	service := receivables.NewService(repo, svcCfg)
	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ReceivablesHandler: receivableshttp.NewHandler(logger, service, cfg.PaymentRateLimit),
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("store", cfg.StoreDriver),
			slog.String("locks", cfg.LockBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

type migrateFunc func(context.Context, *pgxpool.Pool, *slog.Logger) (int64, error)

func migrate(ctx context.Context, run migrateFunc) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN, 1)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	version, err := run(ctx, pool, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", slog.Int64("version", version))
	return nil
}

// purgeKeys runs the idempotency cleanup in-process; the worker only serves the
// postgres driver.
func purgeKeys(ctx context.Context, job *jobs.IdempotencyCleanupJob) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = job.Handle(ctx, jobs.NewIdempotencyCleanupTask())
		}
	}
}

func newLocker(cfg *app.Config, client *redis.Client) receivables.Locker {
	if cfg.LockBackend == app.LockRedis && client != nil {
		return receivables.NewRedisLocker(client, cfg.AccountLockTTL)
	}
	return receivables.NewLocalLocker()
}
