package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestHandle_KeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "pharmacy.events"}

	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: "invoice",
		AggregateID:   id.New(),
		EventType:     "invoice.created",
		Payload:       []byte(`{"number":"FAC-2026-00001"}`),
		CreatedAt:     time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Handle(context.Background(), msg))
	require.Len(t, w.msgs, 1)

	got := w.msgs[0]
	assert.Equal(t, msg.AggregateID.String(), string(got.Key))
	assert.JSONEq(t, `{"number":"FAC-2026-00001"}`, string(got.Value))

	headers := map[string]string{}
	for _, h := range got.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "invoice.created", headers[HeaderEventType])
	assert.Equal(t, "invoice", headers[HeaderAggregateType])
	assert.Equal(t, msg.ID.String(), headers[HeaderEventID])
}

func TestHandle_WrapsWriteError(t *testing.T) {
	cause := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: cause}}

	err := p.Handle(context.Background(), &postgres.OutboxMessage{EventType: "stock.low"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "stock.low")
}
