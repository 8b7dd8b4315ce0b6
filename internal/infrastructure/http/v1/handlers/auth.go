package handlers

import (
	"github.com/gin-gonic/gin"

	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles login and the current user.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, user, err := h.service.Login(c.Request.Context(), req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "login successful", dto.LoginResponse{Token: token, User: user})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"user": user, "permissions": user.Permissions()})
}

// UserHandler handles staff account management.
type UserHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewUserHandler creates a new user handler.
func NewUserHandler(base *BaseHandler, service *auth.Service) *UserHandler {
	return &UserHandler{BaseHandler: base, service: service}
}

// List handles GET /users
func (h *UserHandler) List(c *gin.Context) {
	var q dto.UserQuery
	if !h.BindQuery(c, &q) {
		return
	}
	result, err := h.service.ListUsers(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /users
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if !h.BindJSON(c, &req) {
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, "user created", user)
}

// ChangeRole handles PATCH /users/:id/role
func (h *UserHandler) ChangeRole(c *gin.Context) {
	userID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ChangeRoleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	user, err := h.service.ChangeRole(c.Request.Context(), userID, req.Role)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "role changed", user)
}

// Deactivate handles DELETE /users/:id
func (h *UserHandler) Deactivate(c *gin.Context) {
	userID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Deactivate(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "user deactivated", user)
}
