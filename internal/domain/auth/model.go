// Package auth provides user accounts, password login and access tokens.
package auth

import (
	"context"
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/entity"
	"pharmadesk/internal/core/security"
)

// User is a pharmacy staff account. Its Role selects the permission set.
type User struct {
	entity.BaseEntity

	Username            string     `db:"username" json:"username"`
	FullName            string     `db:"full_name" json:"full_name"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	Role                string     `db:"role" json:"role"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
}

// NewUser creates an active user.
func NewUser(username, fullName, passwordHash, role string) *User {
	return &User{
		BaseEntity:   entity.NewBaseEntity(),
		Username:     NormalizeUsername(username),
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
	}
}

// NormalizeUsername lowercases and trims a login name.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate implements entity.Validatable.
func (u *User) Validate(ctx context.Context) error {
	if u.Username == "" {
		return apperror.NewFieldValidation("username", "username is required")
	}
	if len(u.Username) > 50 {
		return apperror.NewFieldValidation("username", "username must be at most 50 characters")
	}
	if !security.ValidRole(u.Role) {
		return apperror.NewFieldValidation("role", "unknown role").WithDetail("roles", security.Roles())
	}
	return nil
}

// IsLocked reports whether failed logins locked the account at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// CanLogin checks the account state.
func (u *User) CanLogin(now time.Time) error {
	if !u.IsActive || u.DeletionMark {
		return apperror.NewForbidden("account is disabled")
	}
	if u.IsLocked(now) {
		return apperror.NewForbidden("account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin counts a bad password and locks the account once
// maxAttempts is reached.
func (u *User) RecordFailedLogin(now time.Time, maxAttempts int, lockDuration time.Duration) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		until := now.Add(lockDuration)
		u.LockedUntil = &until
		u.FailedLoginAttempts = 0
	}
}

// RecordSuccessfulLogin resets the failure counter.
func (u *User) RecordSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

// Permissions returns the permissions granted by the user's role.
func (u *User) Permissions() []security.Permission {
	return security.PermissionsFor(u.Role)
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Credentials for login.
type Credentials struct {
	Username string
	Password string
}

// CreateUserRequest is the input of CreateUser.
type CreateUserRequest struct {
	Username string
	FullName string
	Password string
	Role     string
}
