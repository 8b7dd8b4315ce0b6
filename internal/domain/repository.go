// Package domain provides types shared by the domain packages.
package domain

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches code or name (case-insensitive substring)
	Search string

	// IncludeDeleted includes soft-deleted records
	IncludeDeleted bool

	// Pagination
	Limit  int
	Offset int
}

// Page clamps Limit and Offset to sane values.
func (f ListFilter) Page() (limit, offset int) {
	limit, offset = f.Limit, f.Offset
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
