package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers. Run inside the business
// transaction, allocation is gap-free: the number commits or rolls back with
// the document. Implementations live in the infrastructure layer.
type Generator interface {
	// GetNextNumber generates the next document number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., FAC-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)

	// EnsureAtLeast raises the counter to value when it is lower. Used to
	// recover after numbers were written without going through the counter.
	EnsureAtLeast(ctx context.Context, cfg Config, period time.Time, value int64) error
}
