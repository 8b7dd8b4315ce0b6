package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/pkg/logger"
)

const keyExposeCauses = "expose_causes"

// ErrorHandler renders the last error registered on the context as
// {success:false, error, message, details}. Causes of 500 responses are
// attached only when exposeCauses is set (non-production).
func ErrorHandler(exposeCauses bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(keyExposeCauses, exposeCauses)
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		RenderError(c, c.Errors.Last().Err)
	}
}

// RenderError writes the error envelope for err.
func RenderError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}

func errorBody(c *gin.Context, err error) (int, gin.H) {
	ctx := c.Request.Context()

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "unhandled error", "error", err)
		appErr = apperror.NewInternal(err)
	}

	body := gin.H{
		"success": false,
		"error":   appErr.Code,
		"message": appErr.Message,
	}

	details := map[string]any{}
	for k, v := range appErr.Details {
		details[k] = v
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		if ok && appErr.Err != nil {
			logger.Error(ctx, "request failed", "code", appErr.Code, "cause", appErr.Err)
		}
		details["request_id"] = c.GetString("request_id")
		if c.GetBool(keyExposeCauses) && appErr.Err != nil {
			details["cause"] = appErr.Err.Error()
		}
	} else if appErr.Err != nil {
		logger.Debug(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
	}

	if len(details) > 0 {
		body["details"] = details
	}
	return appErr.HTTPStatus, body
}
