package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pharmadesk/internal/core/idempotency"
	"pharmadesk/internal/core/security"
	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/http/v1/handlers"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
	"pharmadesk/internal/infrastructure/metrics"
	"pharmadesk/pkg/logger"
)

// RouterConfig holds the services behind the API.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	AuthService    *auth.Service
	ProductService *product.Service
	StockService   *stock.Service
	InvoiceService *invoice.Service

	// Idempotency backs the Idempotency-Key header on sale creation.
	// Nil disables it.
	Idempotency idempotency.Store

	// Database is pinged by the readiness probe.
	Database handlers.Pinger

	// Metrics enables /metrics and request histograms. Nil disables them.
	Metrics *metrics.Metrics

	// ExposeErrorCauses adds the cause of 500 responses to their details.
	ExposeErrorCauses bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler(cfg.ExposeErrorCauses))
	router.Use(middleware.Recovery())
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	healthHandler := handlers.NewHealthHandler(cfg.Database)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	base := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(base, cfg.AuthService)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", authHandler.Login)

	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	{
		protected.GET("/auth/me", authHandler.Me)

		registerUserRoutes(protected.Group("/users"), base, cfg)
		RegisterCatalogRoutes(protected.Group("/products"),
			handlers.NewProductHandler(base, cfg.ProductService, cfg.StockService),
			CatalogPermissions{
				Read:   security.PermProductRead,
				Write:  security.PermProductWrite,
				Delete: security.PermProductDelete,
			})
		registerStockRoutes(protected.Group("/stock"), base, cfg)
		registerInvoiceRoutes(protected.Group("/invoices"), base, cfg)
	}

	return router
}

func registerUserRoutes(g *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewUserHandler(base, cfg.AuthService)

	g.Use(middleware.RequirePermission(security.PermUserManage))
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PATCH("/:id/role", h.ChangeRole)
	g.DELETE("/:id", h.Deactivate)
}

func registerStockRoutes(g *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewStockHandler(base, cfg.StockService, cfg.ProductService)

	g.POST("/movements", middleware.RequirePermission(security.PermStockWrite), h.CreateMovement)
	g.GET("/movements", middleware.RequirePermission(security.PermStockRead), h.ListMovements)
	g.GET("/levels/:product_id", middleware.RequirePermission(security.PermStockRead), h.Level)
	g.GET("/dashboard", middleware.RequirePermission(security.PermStockRead), h.Dashboard)
	g.POST("/bulk", middleware.RequirePermission(security.PermStockBulk), h.Bulk)
	g.POST("/import", middleware.RequirePermission(security.PermStockBulk), h.Import)
	g.POST("/reconcile", middleware.RequirePermission(security.PermStockReconcile), h.Reconcile)
}

func registerInvoiceRoutes(g *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewInvoiceHandler(base, cfg.InvoiceService)

	create := []gin.HandlerFunc{middleware.RequirePermission(security.PermInvoiceCreate)}
	pay := []gin.HandlerFunc{middleware.RequirePermission(security.PermInvoicePayment)}
	if cfg.Idempotency != nil {
		create = append(create, middleware.Idempotency(cfg.Idempotency))
		pay = append(pay, middleware.Idempotency(cfg.Idempotency))
	}

	g.POST("", append(create, h.Create)...)
	g.GET("", middleware.RequirePermission(security.PermInvoiceRead), h.List)
	g.GET("/export", middleware.RequirePermission(security.PermInvoiceExport), h.Export)
	g.GET("/:id", middleware.RequirePermission(security.PermInvoiceRead), h.Get)
	g.POST("/:id/payments", append(pay, h.RecordPayment)...)
}
