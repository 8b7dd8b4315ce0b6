package auth

import (
	"context"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	// Create inserts a user. A taken username fails with DUPLICATE.
	Create(ctx context.Context, user *User) error

	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByUsername looks up a normalized username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update stores the mutable fields when the stored version equals
	// user.Version, then bumps user.Version.
	Update(ctx context.Context, user *User) error

	List(ctx context.Context, filter UserFilter) (domain.ListResult[*User], error)
}

// UserFilter for listing users. Search matches username or full name.
type UserFilter struct {
	domain.ListFilter
	Role     string
	IsActive *bool
}
