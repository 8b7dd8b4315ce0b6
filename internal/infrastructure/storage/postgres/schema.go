package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"pharmadesk/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the embedded DDL.
func Schema() string {
	return schemaSQL
}

// ApplySchema runs the embedded DDL. Statements are idempotent.
func ApplySchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "database schema applied")
	return nil
}
