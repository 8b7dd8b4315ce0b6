// Package numerator provides the PostgreSQL implementation of document
// numbering on the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "pharmadesk/internal/core/numerator"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

// Querier is the part of pgx the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service allocates document numbers. The counter row is updated through
// the querier of the current transaction, so the number and the document
// commit or roll back together.
type Service struct {
	querier func(ctx context.Context) Querier
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator that joins the transaction carried by ctx.
func New(txm *postgres.TxManager) *Service {
	return &Service{
		querier: func(ctx context.Context) Querier { return txm.GetQuerier(ctx) },
	}
}

// GetNextNumber increments the counter for cfg in period with
// UPSERT ... RETURNING. The row lock is held until the surrounding
// transaction ends.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (key) DO UPDATE
		SET current_value = sys_sequences.current_value + 1, updated_at = NOW()
		RETURNING current_value
	`, cfg.Key(period)).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number: %w", err)
	}
	return cfg.Format(period, num), nil
}

// EnsureAtLeast raises the counter to value when it is lower, so the next
// number is at least value+1.
func (s *Service) EnsureAtLeast(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET current_value = GREATEST(sys_sequences.current_value, $2), updated_at = NOW()
		RETURNING current_value
	`, cfg.Key(period), value).Scan(&result)
	if err != nil {
		return fmt.Errorf("ensure counter: %w", err)
	}
	return nil
}
