package product

import (
	"context"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
)

// ListFilter narrows product listings.
type ListFilter struct {
	domain.ListFilter
	Category string
	IDs      []id.ID
}

// Repository defines the interface for Product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error

	// GetByID returns the product, including soft-deleted ones.
	GetByID(ctx context.Context, id id.ID) (*Product, error)

	// GetByCode returns a product that is not soft-deleted.
	GetByCode(ctx context.Context, code string) (*Product, error)

	// GetForUpdate returns the product with a row lock held until the end of
	// the surrounding transaction.
	GetForUpdate(ctx context.Context, id id.ID) (*Product, error)

	// Update modifies descriptive fields when the stored version equals
	// p.Version, then bumps p.Version. Fails with CONCURRENT_MODIFICATION
	// otherwise. InitialStock is never rewritten.
	Update(ctx context.Context, p *Product) error

	SetDeletionMark(ctx context.Context, id id.ID, marked bool) error

	// SetCachedStock refreshes the cached current_stock column.
	SetCachedStock(ctx context.Context, id id.ID, qty int64) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error)

	// ListActive returns every product without deletion mark, ordered by name.
	ListActive(ctx context.Context) ([]*Product, error)
}
