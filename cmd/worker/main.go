package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vendaflow/vendaflow/internal/app"
	"github.com/vendaflow/vendaflow/internal/installments"
	"github.com/vendaflow/vendaflow/internal/inventory"
	"github.com/vendaflow/vendaflow/internal/platform/cache"
	"github.com/vendaflow/vendaflow/internal/platform/db"
	"github.com/vendaflow/vendaflow/internal/reports"
	"github.com/vendaflow/vendaflow/jobs"
)

func main() {
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

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	installmentsService := installments.NewService(installments.NewRepository(pool), nil, nil)
	inventoryService := inventory.NewService(inventory.NewRepository(pool), nil)

	refreshJob := jobs.NewInstallmentsRefreshJob(installmentsService, reportCache, logger)
	lowStockJob := jobs.NewLowStockScanJob(inventoryService, logger)

	refreshTask, err := jobs.NewInstallmentsRefreshTask(jobs.InstallmentsRefreshPayload{BumpReports: true})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	lowStockTask, err := jobs.NewLowStockScanTask(jobs.LowStockScanPayload{})
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInstallmentsRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskLowStockScan, Handler: lowStockJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.InstallmentsRefreshCron, Task: refreshTask},
			{Spec: cfg.LowStockScanCron, Task: lowStockTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
