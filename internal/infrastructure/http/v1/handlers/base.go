package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds the request body. Malformed JSON is a BAD_REQUEST.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewBadRequest("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewBadRequest("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// ParamID parses the path parameter name as an identifier.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewBadRequest("invalid "+name).WithDetail(name, c.Param(name)))
		return id.ID{}, false
	}
	return v, true
}

// Error registers err on the context and aborts. The response is rendered
// by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends 200 with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.Response{Success: true, Data: data})
}

// Created sends 201 with data.
func (h *BaseHandler) Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, dto.Response{Success: true, Message: message, Data: data})
}

// Success sends 200 with a message and optional data.
func (h *BaseHandler) Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, dto.Response{Success: true, Message: message, Data: data})
}

// WithStats sends 200 with data and aggregates.
func (h *BaseHandler) WithStats(c *gin.Context, data, stats any) {
	c.JSON(http.StatusOK, dto.Response{Success: true, Data: data, Stats: stats})
}
