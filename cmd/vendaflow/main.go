package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	"github.com/vendaflow/vendaflow/internal/app"
	"github.com/vendaflow/vendaflow/internal/customers"
	"github.com/vendaflow/vendaflow/internal/installments"
	"github.com/vendaflow/vendaflow/internal/integration"
	"github.com/vendaflow/vendaflow/internal/inventory"
	"github.com/vendaflow/vendaflow/internal/platform/cache"
	"github.com/vendaflow/vendaflow/internal/platform/db"
	"github.com/vendaflow/vendaflow/internal/reports"
	"github.com/vendaflow/vendaflow/internal/sales"
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

	validate := validator.New()

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	hooks := integration.NewHooks(logger, reportCache)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, nil)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, validate)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService, validate)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, inventoryService, hooks, nil)
	salesHandler := sales.NewHandler(logger, salesService, validate)

	installmentsRepo := installments.NewRepository(pool)
	installmentsService := installments.NewService(installmentsRepo, hooks, nil)
	installmentsHandler := installments.NewHandler(logger, installmentsService, validate)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, reportCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	router := app.NewRouter(
		app.MiddlewareConfig{Logger: logger, Config: cfg},
		inventoryHandler,
		customersHandler,
		salesHandler,
		installmentsHandler,
		reportsHandler,
	)

	if err := app.RunServer(ctx, cfg, logger, router); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server shut down")
}
