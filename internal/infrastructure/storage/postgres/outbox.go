package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/events"
	"pharmadesk/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the number of failed deliveries after which a message
// is marked failed and becomes eligible for the dead letter table.
const MaxOutboxRetries = 5

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // "invoice", "product"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // "invoice.created", "stock.low"
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// OutboxPublisher writes domain events to sys_outbox inside the business
// transaction.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish implements events.Publisher. It must run inside a transaction so
// the event commits or rolls back with the change that raised it.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.New(), event.AggregateType, event.AggregateID, event.Type, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// OutboxHandler delivers one message, e.g. to a Kafka topic.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelay moves pending outbox messages to an OutboxHandler.
type OutboxRelay struct {
	pool      *pgxpool.Pool
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *Pool, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		pool:      pool.Pool,
		batchSize: batchSize,
		handler:   handler,
	}
}

// ProcessBatch claims up to batchSize due messages and delivers them. Rows
// stay locked (FOR UPDATE SKIP LOCKED) until the batch transaction ends, so
// concurrent workers never deliver the same message twice.
// Returns the number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		err := rows.Scan(
			&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
			&msg.Payload, &msg.Status, &msg.RetryCount, &msg.LastError,
			&msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox messages: %w", err)
	}

	delivered := 0
	for _, msg := range messages {
		if err := r.handler.Handle(ctx, msg); err != nil {
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"retry_count", msg.RetryCount,
				"error", err)
			if err := r.markFailed(ctx, tx, msg, err); err != nil {
				return delivered, err
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
		`, OutboxStatusPublished, time.Now().UTC(), msg.ID); err != nil {
			return delivered, fmt.Errorf("mark published: %w", err)
		}
		delivered++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return delivered, nil
}

// markFailed schedules a retry with linear backoff, or marks the message
// failed once MaxOutboxRetries is reached.
func (r *OutboxRelay) markFailed(ctx context.Context, q Querier, msg *OutboxMessage, cause error) error {
	nextRetry := time.Now().UTC().Add(time.Duration(msg.RetryCount+1) * time.Minute)
	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    next_retry_at = $2,
		    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
		WHERE id = $5
	`, cause.Error(), nextRetry, MaxOutboxRetries, OutboxStatusFailed, msg.ID)
	if err != nil {
		return fmt.Errorf("update failed message: %w", err)
	}
	return nil
}

// MoveToDLQ moves failed messages to the dead letter table.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1 AND retry_count >= $2
			RETURNING *
		)
		INSERT INTO sys_outbox_dlq
		SELECT *, NOW() AS failed_at, last_error AS failure_reason FROM moved
	`, OutboxStatusFailed, MaxOutboxRetries)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}

	return result.RowsAffected(), nil
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil {
			logger.Error(ctx, "outbox batch failed", "error", err)
		} else if n > 0 {
			logger.Debug(ctx, "outbox batch delivered", "count", n)
		}
		if moved, err := r.MoveToDLQ(ctx); err != nil {
			logger.Error(ctx, "outbox dlq move failed", "error", err)
		} else if moved > 0 {
			logger.Warn(ctx, "outbox messages moved to dlq", "count", moved)
		}

		// Drain quickly while full batches keep coming.
		if n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
