// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable     = "invoices"
	invoiceItemsTable = "invoice_items"
)

var (
	invoiceColumns = postgres.ExtractDBColumns[invoice.Invoice]()
	itemColumns    = postgres.ExtractDBColumns[invoice.Item]()
)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the header and copies the items in. It must run inside
// the sale transaction.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	sql, args, err := r.builder.
		Insert(invoicesTable).
		SetMap(postgres.ColumnMap(inv, invoiceColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if mapped := postgres.MapUniqueViolation(err, "invoice", invoicesTable, inv.Number); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	for i := range inv.Items {
		inv.Items[i].InvoiceID = inv.ID
	}
	if _, err := r.inserter.CopyFromSlice(ctx, invoiceItemsTable, itemColumns, postgres.Rows(inv.Items, itemColumns)); err != nil {
		return fmt.Errorf("copy invoice items: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) get(ctx context.Context, invoiceID id.ID, suffix string) (*invoice.Invoice, error) {
	q := r.builder.Select(invoiceColumns...).From(invoicesTable).Where(squirrel.Eq{"id": invoiceID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv invoice.Invoice
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID.String())
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

// GetByID returns the invoice with its items.
func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	inv, err := r.get(ctx, invoiceID, "")
	if err != nil {
		return nil, err
	}
	items, err := r.ItemsFor(ctx, []id.ID{invoiceID})
	if err != nil {
		return nil, err
	}
	inv.Items = items[invoiceID]
	if inv.Items == nil {
		inv.Items = []invoice.Item{}
	}
	return inv, nil
}

// GetForUpdate returns the invoice header under a row lock.
func (r *InvoiceRepo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	if !r.txm.InTransaction(ctx) {
		return nil, fmt.Errorf("get invoice for update requires transaction context")
	}
	return r.get(ctx, invoiceID, "FOR UPDATE")
}

// UpdatePayment stores the payment fields. inv.Version is the new version,
// the stored row must hold the previous one.
func (r *InvoiceRepo) UpdatePayment(ctx context.Context, inv *invoice.Invoice) error {
	sql, args, err := r.builder.
		Update(invoicesTable).
		Set("paid_amount", inv.PaidAmount).
		Set("due_amount", inv.DueAmount).
		Set("payment_status", inv.PaymentStatus).
		Set("version", inv.Version).
		Set("updated_at", inv.UpdatedAt).
		Where(squirrel.Eq{"id": inv.ID}).
		Where(squirrel.Eq{"version": inv.Version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update invoice payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("invoice", inv.ID.String())
	}
	return nil
}

// where translates the filter. DateTo includes its whole calendar day.
func where(f invoice.ListFilter) squirrel.And {
	cond := squirrel.And{}
	if f.DateFrom != nil {
		cond = append(cond, squirrel.GtOrEq{"issued_at": *f.DateFrom})
	}
	if f.DateTo != nil {
		y, m, d := f.DateTo.Date()
		end := time.Date(y, m, d, 0, 0, 0, 0, f.DateTo.Location()).AddDate(0, 0, 1)
		cond = append(cond, squirrel.Lt{"issued_at": end})
	}
	if f.Status != nil {
		cond = append(cond, squirrel.Eq{"payment_status": *f.Status})
	}
	if f.Method != nil {
		cond = append(cond, squirrel.Eq{"payment_method": *f.Method})
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := postgres.ContainsPattern(search)
		cond = append(cond, squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"customer_name": pattern},
		})
	}
	return cond
}

// List returns invoice headers, newest first.
func (r *InvoiceRepo) List(ctx context.Context, f invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	limit, offset := f.Page()
	result := domain.ListResult[*invoice.Invoice]{Items: []*invoice.Invoice{}, Limit: limit, Offset: offset}
	querier := r.txm.GetQuerier(ctx)
	cond := where(f)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(invoicesTable).Where(cond).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count invoices: %w", err)
	}

	sql, args, err := r.builder.
		Select(invoiceColumns...).
		From(invoicesTable).
		Where(cond).
		OrderBy("issued_at DESC", "number DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list invoices: %w", err)
	}
	return result, nil
}

// ItemsFor loads the items of the given invoices, ordered by line.
func (r *InvoiceRepo) ItemsFor(ctx context.Context, invoiceIDs []id.ID) (map[id.ID][]invoice.Item, error) {
	out := make(map[id.ID][]invoice.Item, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}

	sql, args, err := r.builder.
		Select(itemColumns...).
		From(invoiceItemsTable).
		Where(squirrel.Eq{"invoice_id": invoiceIDs}).
		OrderBy("invoice_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []invoice.Item
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	for _, it := range items {
		out[it.InvoiceID] = append(out[it.InvoiceID], it)
	}
	return out, nil
}

// Stats aggregates the invoices matching f.
func (r *InvoiceRepo) Stats(ctx context.Context, f invoice.ListFilter) (invoice.Stats, error) {
	stats := invoice.NewStats()

	sql, args, err := r.builder.
		Select(
			"payment_status",
			"COUNT(*) AS count",
			"COALESCE(SUM(subtotal), 0) AS subtotal",
			"COALESCE(SUM(tax_amount), 0) AS tax_amount",
			"COALESCE(SUM(total), 0) AS total",
			"COALESCE(SUM(paid_amount), 0) AS paid",
			"COALESCE(SUM(due_amount), 0) AS due",
			"COALESCE(SUM(reimbursement_amount), 0) AS reimbursement",
		).
		From(invoicesTable).
		Where(where(f)).
		GroupBy("payment_status").
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build stats query: %w", err)
	}

	var rows []struct {
		Status        invoice.PaymentStatus `db:"payment_status"`
		Count         int64                 `db:"count"`
		Subtotal      decimal.Decimal       `db:"subtotal"`
		TaxAmount     decimal.Decimal       `db:"tax_amount"`
		Total         decimal.Decimal       `db:"total"`
		Paid          decimal.Decimal       `db:"paid"`
		Due           decimal.Decimal       `db:"due"`
		Reimbursement decimal.Decimal       `db:"reimbursement"`
	}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return stats, fmt.Errorf("invoice stats: %w", err)
	}

	for _, row := range rows {
		stats.Count += row.Count
		stats.Subtotal = stats.Subtotal.Add(row.Subtotal)
		stats.TaxAmount = stats.TaxAmount.Add(row.TaxAmount)
		stats.Total = stats.Total.Add(row.Total)
		stats.Paid = stats.Paid.Add(row.Paid)
		stats.Due = stats.Due.Add(row.Due)
		stats.Reimbursement = stats.Reimbursement.Add(row.Reimbursement)
		stats.ByStatus[row.Status] += row.Count
	}
	return stats, nil
}

// MaxSequence returns the highest numeric suffix stored for
// "{prefix}-{year}-NNNNN" numbers, or 0.
func (r *InvoiceRepo) MaxSequence(ctx context.Context, prefix string, year int) (int64, error) {
	head := fmt.Sprintf("%s-%d-", prefix, year)

	sql, args, err := r.builder.
		Select().
		Column(squirrel.Expr("COALESCE(MAX(CAST(SUBSTRING(number FROM ?) AS BIGINT)), 0)", len(head)+1)).
		From(invoicesTable).
		Where(squirrel.Like{"number": head + "%"}).
		Where(squirrel.Expr("SUBSTRING(number FROM ?) ~ '^[0-9]+$'", len(head)+1)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build max sequence query: %w", err)
	}

	var seq int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max invoice sequence: %w", err)
	}
	return seq, nil
}
