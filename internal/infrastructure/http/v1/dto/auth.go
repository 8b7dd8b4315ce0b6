package dto

import (
	"pharmadesk/internal/domain/auth"
)

// LoginRequest for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{Username: r.Username, Password: r.Password}
}

// LoginResponse carries the access token and the signed-in user.
type LoginResponse struct {
	*auth.Token
	User *auth.User `json:"user"`
}

// CreateUserRequest for admin user creation.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// ToDomain converts to the domain request.
func (r *CreateUserRequest) ToDomain() auth.CreateUserRequest {
	return auth.CreateUserRequest{
		Username: r.Username,
		FullName: r.FullName,
		Password: r.Password,
		Role:     r.Role,
	}
}

// ChangeRoleRequest for PATCH /users/:id/role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UserQuery for GET /users.
type UserQuery struct {
	PageQuery
	Role     string `form:"role"`
	IsActive *bool  `form:"is_active"`
}

// ToFilter converts to the domain filter.
func (q UserQuery) ToFilter() auth.UserFilter {
	return auth.UserFilter{ListFilter: q.ToListFilter(), Role: q.Role, IsActive: q.IsActive}
}
