package memory

import (
	"context"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/idempotency"
)

// IdempotencyStore implements idempotency.Store. Records never expire.
type IdempotencyStore struct{ s *Store }

var _ idempotency.Store = (*IdempotencyStore)(nil)

func (i *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	var replay *idempotency.Replay
	err := i.s.do(ctx, "", func(st *state) error {
		rec, ok := st.idempotency[key]
		if !ok {
			st.idempotency[key] = &idemRecord{
				userID:      userID,
				operation:   operation,
				requestHash: requestHash,
				status:      idempotency.StatusPending,
			}
			return nil
		}
		if rec.userID != userID || rec.operation != operation || rec.requestHash != requestHash {
			return apperror.NewIdempotencyMismatch(key)
		}
		if rec.status == idempotency.StatusPending {
			return apperror.NewIdempotencyConflict(key)
		}
		r := rec.resp
		replay = &r
		return nil
	})
	return replay, err
}

func (i *IdempotencyStore) Complete(ctx context.Context, key string, resp idempotency.Replay) error {
	return i.finish(ctx, key, idempotency.StatusSuccess, resp)
}

func (i *IdempotencyStore) Fail(ctx context.Context, key string, resp idempotency.Replay) error {
	return i.finish(ctx, key, idempotency.StatusFailed, resp)
}

func (i *IdempotencyStore) Release(ctx context.Context, key string) error {
	return i.s.do(ctx, "", func(st *state) error {
		delete(st.idempotency, key)
		return nil
	})
}

func (i *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, resp idempotency.Replay) error {
	return i.s.do(ctx, "", func(st *state) error {
		rec, ok := st.idempotency[key]
		if !ok {
			return nil
		}
		rec.status = status
		rec.resp = idempotency.Replay{
			StatusCode:  resp.StatusCode,
			ContentType: resp.ContentType,
			Body:        append([]byte(nil), resp.Body...),
		}
		return nil
	})
}
