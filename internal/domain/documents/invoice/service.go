package invoice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/core/tx"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/pkg/logger"
)

// Defaults.
const (
	DefaultNumberPrefix   = "FAC"
	DefaultNumberAttempts = 3
	MaxExportRows         = 10000
	saleReason            = "sale"
)

// DefaultTaxRate is the VAT percentage applied to sales.
var DefaultTaxRate = decimal.NewFromInt(14)

// Recorder receives counters about sales.
type Recorder interface {
	SaleCompleted(total decimal.Decimal, lines int)
	SaleFailed(code string)
	NumberCollision()
}

type nopRecorder struct{}

func (nopRecorder) SaleCompleted(decimal.Decimal, int) {}
func (nopRecorder) SaleFailed(string)                  {}
func (nopRecorder) NumberCollision()                   {}

// ServiceConfig configures the invoice service.
type ServiceConfig struct {
	Repo      Repository
	Stock     *stock.Service
	TxManager tx.Manager
	Numerator numerator.Generator

	Publisher events.Publisher
	Recorder  Recorder

	TaxRate        *decimal.Decimal // DefaultTaxRate when nil
	NumberPrefix   string
	NumberAttempts int

	Now      func() time.Time
	Location *time.Location
}

// Service handles sale invoices.
type Service struct {
	repo      Repository
	stock     *stock.Service
	txManager tx.Manager
	numerator numerator.Generator
	publisher events.Publisher
	recorder  Recorder

	taxRate  decimal.Decimal
	numCfg   numerator.Config
	attempts int

	now func() time.Time
	loc *time.Location
}

// NewService creates a new invoice service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		stock:     cfg.Stock,
		txManager: cfg.TxManager,
		numerator: cfg.Numerator,
		publisher: cfg.Publisher,
		recorder:  cfg.Recorder,
		taxRate:   DefaultTaxRate,
		attempts:  cfg.NumberAttempts,
		now:       cfg.Now,
		loc:       cfg.Location,
	}
	prefix := cfg.NumberPrefix
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	s.numCfg = numerator.DefaultConfig(prefix)
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if cfg.TaxRate != nil {
		s.taxRate = *cfg.TaxRate
	}
	if s.attempts < 1 {
		s.attempts = DefaultNumberAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// CreateSale records a sale: it checks stock, allocates the invoice number,
// persists the invoice and its items, removes stock per line and writes the
// invoice.created event, all in one transaction. A number collision rolls
// back, resyncs the counter and retries the whole transaction.
func (s *Service) CreateSale(ctx context.Context, req SaleRequest) (*Invoice, error) {
	if err := req.Validate(); err != nil {
		s.failed(ctx, err)
		return nil, err
	}

	issuedAt := s.now().In(s.loc)
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		inv, moved, err := s.createOnce(ctx, req, issuedAt)
		if err == nil {
			s.stock.Committed(ctx, moved...)
			s.recorder.SaleCompleted(inv.Total, len(inv.Items))
			logger.Info(ctx, "sale recorded",
				"invoice_id", inv.ID,
				"number", inv.Number,
				"lines", len(inv.Items),
				"total", inv.Total.String(),
				"payment_status", inv.PaymentStatus,
				"attempt", attempt,
			)
			return inv, nil
		}
		if !apperror.IsDuplicateField(err, "number") {
			return nil, s.saleError(ctx, err)
		}

		lastErr = err
		s.recorder.NumberCollision()
		logger.Warn(ctx, "invoice number collision",
			"attempt", attempt,
			"error", err,
		)
		if attempt == s.attempts {
			break
		}
		if err := s.resyncCounter(ctx, issuedAt); err != nil {
			return nil, s.saleError(ctx, err)
		}
	}

	logger.Error(ctx, "invoice number retries exhausted", "attempts", s.attempts, "error", lastErr)
	appErr := apperror.NewTransactionFailure(lastErr)
	s.recorder.SaleFailed(appErr.Code)
	return nil, appErr
}

// createOnce runs one sale transaction and returns the stock movements it
// committed.
func (s *Service) createOnce(ctx context.Context, req SaleRequest, issuedAt time.Time) (*Invoice, []*stock.Result, error) {
	var inv *Invoice
	var moved []*stock.Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		moved = moved[:0]
		products, err := s.lockAndCheck(ctx, req)
		if err != nil {
			return err
		}

		inv = NewInvoice(issuedAt, req.PaymentMethod)
		inv.CustomerName = optional(req.CustomerName)
		inv.CustomerPhone = optional(req.CustomerPhone)
		inv.PrescriptionRef = optional(req.PrescriptionRef)
		inv.Notes = optional(req.Notes)
		inv.CreatedBy = actorID(ctx)

		for _, line := range req.Items {
			p := products[line.ProductID]
			price := p.SellingPrice
			if line.UnitPrice != nil {
				price = *line.UnitPrice
			}
			inv.AddItem(p, line.Quantity, price, orZero(line.DiscountPercentage))
		}
		inv.Recalculate(s.taxRate, orZero(req.InsuranceCoverage))
		if req.PaidAmount != nil {
			inv.SetPaid(*req.PaidAmount)
		} else {
			inv.SetPaid(inv.Total)
		}

		number, err := s.numerator.GetNextNumber(ctx, s.numCfg, issuedAt)
		if err != nil {
			return fmt.Errorf("allocate invoice number: %w", err)
		}
		inv.Number = number

		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}

		for i, it := range inv.Items {
			res, err := s.stock.RemoveStock(ctx, stock.Change{
				ProductID: *it.ProductID,
				Quantity:  it.Quantity,
				Reason:    saleReason,
				Reference: inv.Number,
			})
			if err != nil {
				if appErr, ok := apperror.AsAppError(err); ok {
					return appErr.WithDetail("line", i+1)
				}
				return fmt.Errorf("remove stock for line %d: %w", i+1, err)
			}
			moved = append(moved, res)
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: events.AggregateInvoice,
			AggregateID:   inv.ID,
			Type:          events.TypeInvoiceCreated,
			Payload:       createdPayload(inv),
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, moved, nil
}

// lockAndCheck locks every distinct product in ascending id order and checks
// that its stock covers the summed requested quantity.
func (s *Service) lockAndCheck(ctx context.Context, req SaleRequest) (map[id.ID]*product.Product, error) {
	requested := req.requested()
	ids := make([]id.ID, 0, len(requested))
	for pid := range requested {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return id.Less(ids[i], ids[j]) })

	products := make(map[id.ID]*product.Product, len(ids))
	for _, pid := range ids {
		p, lvl, err := s.stock.LockLevel(ctx, pid)
		if err != nil {
			return nil, err
		}
		if want := requested[pid]; want > lvl.CurrentStock {
			return nil, apperror.NewInsufficientStock(p.ID.String(), p.Name, want, lvl.CurrentStock)
		}
		if p.Classification.RequiresPrescription() && req.PrescriptionRef == "" {
			return nil, apperror.NewFieldValidation("prescription_ref",
				fmt.Sprintf("%s requires a prescription reference", p.Name)).
				WithDetail("product_id", p.ID.String())
		}
		products[pid] = p
	}
	return products, nil
}

// resyncCounter raises the counter to the highest number already stored for
// the year so the next attempt allocates a free number.
func (s *Service) resyncCounter(ctx context.Context, issuedAt time.Time) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		maxSeq, err := s.repo.MaxSequence(ctx, s.numCfg.Prefix, issuedAt.Year())
		if err != nil {
			return fmt.Errorf("read max invoice sequence: %w", err)
		}
		return s.numerator.EnsureAtLeast(ctx, s.numCfg, issuedAt, maxSeq)
	})
}

// saleError keeps client errors and wraps everything else as a
// TRANSACTION_FAILURE.
func (s *Service) saleError(ctx context.Context, err error) error {
	if apperror.IsClientError(err) {
		s.failed(ctx, err)
		return err
	}
	logger.Error(ctx, "sale transaction failed", "error", err)
	appErr := apperror.NewTransactionFailure(err)
	s.recorder.SaleFailed(appErr.Code)
	return appErr
}

func (s *Service) failed(ctx context.Context, err error) {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return
	}
	s.recorder.SaleFailed(appErr.Code)
	logger.Warn(ctx, "sale rejected", "code", appErr.Code, "details", appErr.Details)
}

// RecordPayment adds a payment to an invoice. The invoice row is locked so
// concurrent payments cannot overpay it.
func (s *Service) RecordPayment(ctx context.Context, invoiceID id.ID, amount decimal.Decimal) (*Invoice, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewFieldValidation("amount", "amount must be greater than zero")
	}
	amount = amount.Round(2)

	var inv *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := locked.ApplyPayment(amount); err != nil {
			return err
		}
		if err := s.repo.UpdatePayment(ctx, locked); err != nil {
			return err
		}
		inv = locked
		return s.publisher.Publish(ctx, events.Event{
			AggregateType: events.AggregateInvoice,
			AggregateID:   locked.ID,
			Type:          events.TypeInvoicePaid,
			Payload: map[string]any{
				"number":         locked.Number,
				"amount":         amount.String(),
				"paid_amount":    locked.PaidAmount.String(),
				"due_amount":     locked.DueAmount.String(),
				"payment_status": locked.PaymentStatus,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"amount", amount.String(),
		"payment_status", inv.PaymentStatus,
	)
	return s.Get(ctx, invoiceID)
}

// Get returns an invoice with its items.
func (s *Service) Get(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.repo.GetByID(ctx, invoiceID)
}

// List returns a page of invoices and stats over the whole filtered set.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], Stats, error) {
	if err := validateFilter(filter); err != nil {
		return domain.ListResult[*Invoice]{}, Stats{}, err
	}
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ListResult[*Invoice]{}, Stats{}, err
	}
	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return domain.ListResult[*Invoice]{}, Stats{}, err
	}
	return page, stats, nil
}

// ForExport returns every invoice matching filter, items included, up to
// MaxExportRows.
func (s *Service) ForExport(ctx context.Context, filter ListFilter) ([]*Invoice, Stats, error) {
	if err := validateFilter(filter); err != nil {
		return nil, Stats{}, err
	}
	filter.Limit = MaxExportRows
	filter.Offset = 0

	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, Stats{}, err
	}
	if page.TotalCount > MaxExportRows {
		return nil, Stats{}, apperror.NewBadRequest(
			fmt.Sprintf("export is limited to %d invoices, narrow the date range", MaxExportRows)).
			WithDetail("total_count", page.TotalCount)
	}

	ids := make([]id.ID, len(page.Items))
	for i, inv := range page.Items {
		ids[i] = inv.ID
	}
	items, err := s.repo.ItemsFor(ctx, ids)
	if err != nil {
		return nil, Stats{}, err
	}
	for _, inv := range page.Items {
		inv.Items = items[inv.ID]
	}

	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, Stats{}, err
	}
	return page.Items, stats, nil
}

func validateFilter(f ListFilter) error {
	if f.Status != nil && !f.Status.Valid() {
		return apperror.NewFieldValidation("payment_status", "unknown payment status")
	}
	if f.Method != nil && !f.Method.Valid() {
		return apperror.NewFieldValidation("payment_method", "unknown payment method")
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return apperror.NewFieldValidation("date_to", "date_to must not be before date_from")
	}
	return nil
}

func createdPayload(inv *Invoice) map[string]any {
	lines := make([]map[string]any, len(inv.Items))
	for i, it := range inv.Items {
		lines[i] = map[string]any{
			"product_id": it.ProductID,
			"quantity":   it.Quantity,
			"net_amount": it.NetAmount.String(),
		}
	}
	return map[string]any{
		"number":         inv.Number,
		"issued_at":      inv.IssuedAt,
		"total":          inv.Total.String(),
		"paid_amount":    inv.PaidAmount.String(),
		"payment_method": inv.PaymentMethod,
		"payment_status": inv.PaymentStatus,
		"items":          lines,
	}
}

func actorID(ctx context.Context) *id.ID {
	uid, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		return nil
	}
	return &uid
}
