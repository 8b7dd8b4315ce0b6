// Package events defines domain events written to the transactional outbox.
package events

import (
	"context"

	"pharmadesk/internal/core/id"
)

// Event types.
const (
	TypeInvoiceCreated = "invoice.created"
	TypeInvoicePaid    = "invoice.payment_recorded"
	TypeStockLow       = "stock.low"
)

// Aggregate types.
const (
	AggregateInvoice = "invoice"
	AggregateProduct = "product"
)

// Event is a fact recorded by a service inside its transaction.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher records events. Implementations must write within the
// transaction carried by ctx so the event commits or rolls back with the
// business change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
