// Package idempotency defines the store behind the Idempotency-Key header.
package idempotency

import (
	"context"
	"time"
)

// HeaderKey is the request header carrying the client key.
const HeaderKey = "Idempotency-Key"

// DefaultTTL is how long a completed response is replayed.
const DefaultTTL = 24 * time.Hour

// StaleAfter is the age after which a pending key is considered abandoned.
const StaleAfter = time.Minute

// Status of a stored key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is a stored response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store records request keys and their responses.
type Store interface {
	// Acquire claims key for a request. It returns (nil, nil) when the
	// caller should process the request, a Replay when a final response is
	// stored, and an IDEMPOTENCY_CONFLICT error when the key is in flight or
	// was used for a different request.
	Acquire(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)

	// Complete stores a successful response.
	Complete(ctx context.Context, key string, resp Replay) error

	// Fail stores a final client-error response.
	Fail(ctx context.Context, key string, resp Replay) error

	// Release forgets the key so the client may retry.
	Release(ctx context.Context, key string) error
}
