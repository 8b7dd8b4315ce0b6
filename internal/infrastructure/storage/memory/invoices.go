package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/documents/invoice"
)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct{ s *Store }

var _ invoice.Repository = (*InvoiceRepo)(nil)

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.s.do(ctx, OpInvoiceCreate, func(st *state) error {
		if _, ok := st.numbers[inv.Number]; ok {
			return apperror.NewDuplicate("invoice", "number", inv.Number)
		}
		st.invoices[inv.ID] = copyInvoice(inv)
		st.numbers[inv.Number] = inv.ID
		return nil
	})
}

func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := r.s.do(ctx, "", func(st *state) error {
		inv, ok := st.invoices[invoiceID]
		if !ok {
			return apperror.NewNotFound("invoice", invoiceID.String())
		}
		out = copyInvoice(inv)
		return nil
	})
	return out, err
}

func (r *InvoiceRepo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	inv, err := r.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Items = nil
	return inv, nil
}

func (r *InvoiceRepo) UpdatePayment(ctx context.Context, inv *invoice.Invoice) error {
	return r.s.do(ctx, "", func(st *state) error {
		cur, ok := st.invoices[inv.ID]
		if !ok {
			return apperror.NewNotFound("invoice", inv.ID.String())
		}
		if cur.Version != inv.Version-1 {
			return apperror.NewConcurrentModification("invoice", inv.ID.String())
		}
		cur.PaidAmount = inv.PaidAmount
		cur.DueAmount = inv.DueAmount
		cur.PaymentStatus = inv.PaymentStatus
		cur.Version = inv.Version
		cur.UpdatedAt = inv.UpdatedAt
		return nil
	})
}

func (r *InvoiceRepo) List(ctx context.Context, f invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	limit, offset := f.Page()
	res := domain.ListResult[*invoice.Invoice]{Items: []*invoice.Invoice{}, Limit: limit, Offset: offset}
	err := r.s.do(ctx, "", func(st *state) error {
		matched := filterInvoices(st, f)
		res.TotalCount = int64(len(matched))
		for _, inv := range window(matched, limit, offset) {
			c := copyInvoice(inv)
			c.Items = nil
			res.Items = append(res.Items, c)
		}
		return nil
	})
	return res, err
}

func (r *InvoiceRepo) ItemsFor(ctx context.Context, invoiceIDs []id.ID) (map[id.ID][]invoice.Item, error) {
	out := make(map[id.ID][]invoice.Item, len(invoiceIDs))
	err := r.s.do(ctx, "", func(st *state) error {
		for _, iid := range invoiceIDs {
			if inv, ok := st.invoices[iid]; ok {
				out[iid] = append([]invoice.Item(nil), inv.Items...)
			}
		}
		return nil
	})
	return out, err
}

func (r *InvoiceRepo) Stats(ctx context.Context, f invoice.ListFilter) (invoice.Stats, error) {
	stats := invoice.NewStats()
	err := r.s.do(ctx, "", func(st *state) error {
		for _, inv := range filterInvoices(st, f) {
			stats.Add(inv)
		}
		return nil
	})
	return stats, err
}

func (r *InvoiceRepo) MaxSequence(ctx context.Context, prefix string, year int) (int64, error) {
	var maxSeq int64
	head := fmt.Sprintf("%s-%d-", prefix, year)
	err := r.s.do(ctx, "", func(st *state) error {
		for number := range st.numbers {
			if !strings.HasPrefix(number, head) {
				continue
			}
			if n := numerator.ParseNumber(number); n > maxSeq {
				maxSeq = n
			}
		}
		return nil
	})
	return maxSeq, err
}

// Insert stores an invoice without touching the counter or the ledger.
// Tests use it to simulate numbers written by another process.
func (r *InvoiceRepo) Insert(inv *invoice.Invoice) {
	_ = r.Create(context.Background(), inv)
}

func filterInvoices(st *state, f invoice.ListFilter) []*invoice.Invoice {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []*invoice.Invoice
	for _, inv := range st.invoices {
		switch {
		case f.DateFrom != nil && inv.IssuedAt.Before(*f.DateFrom):
			continue
		case f.DateTo != nil && !inv.IssuedAt.Before(endOfDay(*f.DateTo)):
			continue
		case f.Status != nil && inv.PaymentStatus != *f.Status:
			continue
		case f.Method != nil && inv.PaymentMethod != *f.Method:
			continue
		case search != "" && !matchesInvoice(inv, search):
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].Number > out[j].Number
	})
	return out
}

func matchesInvoice(inv *invoice.Invoice, search string) bool {
	if strings.Contains(strings.ToLower(inv.Number), search) {
		return true
	}
	return inv.CustomerName != nil && strings.Contains(strings.ToLower(*inv.CustomerName), search)
}

// endOfDay makes DateTo inclusive of its calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
