// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces, the implementations live in
// infrastructure/storage.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSavepoint executes fn inside a savepoint of the transaction found
	// in ctx. When fn fails only its own writes are undone and the outer
	// transaction stays usable. Without an active transaction it behaves
	// like RunInTransaction.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error

	// InTransaction reports whether ctx already carries a transaction.
	InTransaction(ctx context.Context) bool
}
