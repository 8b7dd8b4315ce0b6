package postgres

import (
	"context"
	"fmt"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/idempotency"
)

// IdempotencyRecord is a row of sys_idempotency.
type IdempotencyRecord struct {
	Key         string             `db:"idempotency_key"`
	UserID      string             `db:"user_id"`
	Operation   string             `db:"operation"`
	Status      idempotency.Status `db:"status"`
	RequestHash string             `db:"request_hash"` // SHA256 of request body
	Response    []byte             `db:"response"`
	StatusCode  int                `db:"response_status"`
	ContentType string             `db:"response_content_type"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
	ExpiresAt   time.Time          `db:"expires_at"`
}

// IdempotencyStore implements idempotency.Store on sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// Acquire implements idempotency.Store.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	now := time.Now().UTC()
	q := s.txManager.GetQuerier(ctx)

	// Expired keys are forgotten first so they can be reused.
	if _, err := q.Exec(ctx, `
		DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND expires_at < $2
	`, key, now); err != nil {
		return nil, fmt.Errorf("expire idempotency key: %w", err)
	}

	// xmax = 0 only for a row this statement inserted.
	var record IdempotencyRecord
	var inserted bool
	err := q.QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
		RETURNING user_id, operation, status, request_hash, response, response_status,
		          response_content_type, updated_at, (xmax = 0) AS inserted
	`, key, userID, operation, idempotency.StatusPending, requestHash, now, now.Add(s.ttl)).Scan(
		&record.UserID, &record.Operation, &record.Status, &record.RequestHash,
		&record.Response, &record.StatusCode, &record.ContentType, &record.UpdatedAt, &inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if record.UserID != userID || record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}

	switch record.Status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		return &idempotency.Replay{
			StatusCode:  normalizeReplayStatus(record.StatusCode),
			ContentType: normalizeReplayContentType(record.ContentType),
			Body:        record.Response,
		}, nil
	}

	// Pending: reclaim a key abandoned by a crashed request.
	if now.Sub(record.UpdatedAt) > idempotency.StaleAfter {
		tag, err := q.Exec(ctx, `
			UPDATE sys_idempotency SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
		`, now, key, idempotency.StatusPending, record.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil, nil
		}
	}
	return nil, apperror.NewIdempotencyConflict(key)
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp idempotency.Replay) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, resp)
}

// Fail implements idempotency.Store.
func (s *IdempotencyStore) Fail(ctx context.Context, key string, resp idempotency.Replay) error {
	return s.finish(ctx, key, idempotency.StatusFailed, resp)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, resp idempotency.Replay) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, status, resp.Body, resp.StatusCode, resp.ContentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// Release implements idempotency.Store.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2
	`, key, idempotency.StatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func normalizeReplayStatus(status int) int {
	if status == 0 {
		return 200
	}
	return status
}

func normalizeReplayContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
