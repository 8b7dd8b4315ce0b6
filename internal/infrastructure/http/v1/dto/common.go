// Package dto provides data transfer objects for HTTP API.
package dto

import (
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
)

const dateLayout = "2006-01-02"

// Response is the success envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Stats   any    `json:"stats,omitempty"`
}

// PageQuery contains pagination and search parameters.
type PageQuery struct {
	Search string `form:"search"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// ToListFilter converts to the domain filter.
func (q PageQuery) ToListFilter() domain.ListFilter {
	return domain.ListFilter{Search: strings.TrimSpace(q.Search), Limit: q.Limit, Offset: q.Offset}
}

// ParseID parses a path or body identifier, reporting field on failure.
func ParseID(field, s string) (id.ID, error) {
	v, err := id.Parse(strings.TrimSpace(s))
	if err != nil {
		return id.ID{}, apperror.NewFieldValidation(field, field+" must be a valid UUID")
	}
	return v, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func ParseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperror.NewFieldValidation(field, field+" must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}
