package stock

import (
	"context"
	"time"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
)

// Repository is the append-only movement ledger. It has no update or
// delete, corrections are compensating entries.
type Repository interface {
	// Append inserts a movement.
	Append(ctx context.Context, m *Movement) error

	// Totals sums the movements of one product.
	Totals(ctx context.Context, productID id.ID) (Totals, error)

	// TotalsByProduct sums movements per product. An empty productIDs slice
	// means every product with at least one movement.
	TotalsByProduct(ctx context.Context, productIDs []id.ID) (map[id.ID]Totals, error)

	// List returns movements newest first.
	List(ctx context.Context, filter MovementFilter) (domain.ListResult[Movement], error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	ProductID *id.ID
	Type      *MovementType
	Reference string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}
