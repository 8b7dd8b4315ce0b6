// Package main is the entry point for the PharmaDesk API server.
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

	"github.com/klauspost/compress/gzhttp"

	"pharmadesk/internal/config"
	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/domain/registers/stock"
	v1 "pharmadesk/internal/infrastructure/http/v1"
	"pharmadesk/internal/infrastructure/cache"
	"pharmadesk/internal/infrastructure/metrics"
	"pharmadesk/internal/infrastructure/numerator"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/internal/infrastructure/storage/postgres/auth_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/document_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/register_repo"
	"pharmadesk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting pharmadesk server", "env", cfg.AppEnv)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)
	numeratorService := numerator.New(txManager)
	outbox := postgres.NewOutboxPublisher(txManager)

	// --- Dashboard cache ---
	var dashboardCache stock.DashboardCache = cache.NewLocalDashboard(cfg.Redis.DashboardTTL)
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warnw("redis unavailable, using in-process dashboard cache", "error", err)
		} else {
			defer client.Close()
			dashboardCache = cache.NewRedisDashboard(client, cfg.Redis.DashboardTTL)
			log.Info("redis dashboard cache enabled")
		}
	}

	// --- Metrics ---
	var m *metrics.Metrics
	var stockRecorder stock.Recorder
	var invoiceRecorder invoice.Recorder
	if cfg.MetricsEnabled {
		m = metrics.New()
		m.RegisterPool(pool)
		stockRecorder, invoiceRecorder = m, m
	}

	// --- Services ---
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.AccessTokenTTL = cfg.JWT.TTL
	jwtService := auth.NewJWTService(jwtCfg)
	authService := auth.NewService(auth_repo.NewUserRepo(txManager), txManager, jwtService, auth.DefaultServiceConfig())

	productService := product.NewService(catalog_repo.NewProductRepo(txManager), txManager, numeratorService)

	stockService := stock.NewService(stock.ServiceConfig{
		Repo:      register_repo.NewMovementRepo(txManager),
		Products:  catalog_repo.NewProductRepo(txManager),
		TxManager: txManager,
		Publisher: outbox,
		Cache:     dashboardCache,
		Recorder:  stockRecorder,
		Location:  cfg.Sales.Location,
	})

	taxRate := cfg.Sales.TaxRate
	invoiceService := invoice.NewService(invoice.ServiceConfig{
		Repo:           document_repo.NewInvoiceRepo(txManager),
		Stock:          stockService,
		TxManager:      txManager,
		Numerator:      numeratorService,
		Publisher:      outbox,
		Recorder:       invoiceRecorder,
		TaxRate:        &taxRate,
		NumberPrefix:   cfg.Sales.InvoicePrefix,
		NumberAttempts: cfg.Sales.NumberAttempts,
		Location:       cfg.Sales.Location,
	})

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:            log,
		JWTValidator:      jwtService,
		AuthService:       authService,
		ProductService:    productService,
		StockService:      stockService,
		InvoiceService:    invoiceService,
		Idempotency:       postgres.NewIdempotencyStore(txManager, 24*time.Hour),
		Database:          pool,
		Metrics:           m,
		ExposeErrorCauses: cfg.IsDevelopment(),
	})

	var handler http.Handler = router
	if cfg.GzipEnabled {
		handler = gzhttp.GzipHandler(router)
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
