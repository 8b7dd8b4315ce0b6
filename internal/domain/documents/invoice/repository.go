package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
)

// Repository defines invoice persistence.
type Repository interface {
	// Create inserts the invoice and its items. A taken number fails with a
	// DUPLICATE error on field "number".
	Create(ctx context.Context, inv *Invoice) error

	// GetByID returns the invoice with its items.
	GetByID(ctx context.Context, id id.ID) (*Invoice, error)

	// GetForUpdate returns the invoice (without items) under a row lock.
	GetForUpdate(ctx context.Context, id id.ID) (*Invoice, error)

	// UpdatePayment stores paid, due, status and version.
	UpdatePayment(ctx context.Context, inv *Invoice) error

	// List returns invoices without items, newest first.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error)

	// ItemsFor loads the items of the given invoices, ordered by line.
	ItemsFor(ctx context.Context, invoiceIDs []id.ID) (map[id.ID][]Item, error)

	// Stats aggregates the invoices matching filter (pagination ignored).
	Stats(ctx context.Context, filter ListFilter) (Stats, error)

	// MaxSequence returns the highest numeric suffix stored for numbers
	// starting with "{prefix}-{year}-", or 0.
	MaxSequence(ctx context.Context, prefix string, year int) (int64, error)
}

// ListFilter narrows invoice listings. Search matches number or customer.
type ListFilter struct {
	domain.ListFilter
	DateFrom *time.Time
	DateTo   *time.Time
	Status   *PaymentStatus
	Method   *PaymentMethod
}

// Stats are aggregates over a filtered invoice set.
type Stats struct {
	Count         int64                   `json:"count"`
	Subtotal      decimal.Decimal         `json:"subtotal"`
	TaxAmount     decimal.Decimal         `json:"tax_amount"`
	Total         decimal.Decimal         `json:"total"`
	Paid          decimal.Decimal         `json:"paid"`
	Due           decimal.Decimal         `json:"due"`
	Reimbursement decimal.Decimal         `json:"reimbursement"`
	ByStatus      map[PaymentStatus]int64 `json:"by_status"`
}

// NewStats returns zeroed stats.
func NewStats() Stats {
	return Stats{
		Subtotal:      decimal.Zero,
		TaxAmount:     decimal.Zero,
		Total:         decimal.Zero,
		Paid:          decimal.Zero,
		Due:           decimal.Zero,
		Reimbursement: decimal.Zero,
		ByStatus: map[PaymentStatus]int64{
			StatusPending: 0,
			StatusPartial: 0,
			StatusPaid:    0,
		},
	}
}

// Add folds inv into s.
func (s *Stats) Add(inv *Invoice) {
	s.Count++
	s.Subtotal = s.Subtotal.Add(inv.Subtotal)
	s.TaxAmount = s.TaxAmount.Add(inv.TaxAmount)
	s.Total = s.Total.Add(inv.Total)
	s.Paid = s.Paid.Add(inv.PaidAmount)
	s.Due = s.Due.Add(inv.DueAmount)
	s.Reimbursement = s.Reimbursement.Add(inv.ReimbursementAmount)
	s.ByStatus[inv.PaymentStatus]++
}
