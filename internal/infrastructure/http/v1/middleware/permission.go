// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/security"
)

// RequirePermission middleware checks the caller's role against the
// static permission table.
func RequirePermission(permission security.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		if !security.Has(user.Role, permission) {
			_ = c.Error(
				apperror.NewForbidden("insufficient permissions").
					WithDetail("required_permission", string(permission)),
			)
			c.Abort()
			return
		}

		c.Next()
	}
}

// HasPermission reports whether the caller holds permission. Handlers use
// it for checks that depend on the request body.
func HasPermission(c *gin.Context, permission security.Permission) bool {
	return security.Has(appctx.GetRole(c.Request.Context()), permission)
}
