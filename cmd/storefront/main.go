package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kicksvault/storefront/internal/api"
	"github.com/kicksvault/storefront/internal/catalog"
	"github.com/kicksvault/storefront/internal/config"
	"github.com/kicksvault/storefront/internal/events"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/orderapi"
	"github.com/kicksvault/storefront/internal/pricing"
	"github.com/kicksvault/storefront/internal/repository"
	"github.com/kicksvault/storefront/internal/repository/memory"
	"github.com/kicksvault/storefront/internal/repository/postgres"
	"github.com/kicksvault/storefront/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Scoped cart persistence
	var scopes repository.ScopeStore
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("Using in-memory cart storage; carts are lost on restart")
		scopes = memory.NewScopeStore()
	default:
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		scopes = postgres.NewScopeStore(db, logger)
	}

	engine, err := pricing.NewEngine(cfg.Pricing.EngineConfig())
	if err != nil {
		logger.Fatal("Invalid pricing configuration", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	opts := []service.Option{
		service.WithMetrics(m),
		service.WithOrderIndex(scopes),
	}
	var products service.Catalog
	if cfg.CatalogAPI.BaseURL != "" {
		products = catalog.NewClient(cfg.CatalogAPI, logger)
		opts = append(opts, service.WithCatalog(products))
	} else {
		logger.Warn("No catalog configured; add-to-cart trusts client product data")
	}

	orders := service.NewOrderService(
		orderapi.NewClient(cfg.OrderAPI, logger),
		engine,
		logger,
		opts...,
	)

	source := events.NewChannelSource(256)
	go orders.Watch(ctx, source)

	router := api.NewRouter(cfg, api.Dependencies{
		Scopes:   scopes,
		Orders:   orders,
		Catalog:  products,
		Events:   source,
		Metrics:  m,
		Gatherer: registry,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting storefront API",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("store_backend", cfg.StoreBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	source.Close()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
