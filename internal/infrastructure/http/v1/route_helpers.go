// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/security"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// CatalogPermissions names the permission guarding each catalog route.
type CatalogPermissions struct {
	Read   security.Permission
	Write  security.Permission
	Delete security.Permission
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
//
// Usage:
//
//	handler := handlers.NewProductHandler(base, cfg.Products, cfg.Stock)
//	RegisterCatalogRoutes(api.Group("/products"), handler, CatalogPermissions{...})
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, perms CatalogPermissions) {
	group.GET("", middleware.RequirePermission(perms.Read), handler.List)
	group.POST("", middleware.RequirePermission(perms.Write), handler.Create)
	group.GET("/:id", middleware.RequirePermission(perms.Read), handler.Get)
	group.PUT("/:id", middleware.RequirePermission(perms.Write), handler.Update)
	group.DELETE("/:id", middleware.RequirePermission(perms.Delete), handler.Delete)
}
