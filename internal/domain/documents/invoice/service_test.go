package invoice_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/storage/memory"
)

var saleDay = time.Date(2026, 4, 15, 11, 0, 0, 0, time.UTC)

type recorder struct {
	completed  atomic.Int64
	collisions atomic.Int64
	failed     atomic.Int64
	movements  atomic.Int64
}

func (r *recorder) SaleCompleted(decimal.Decimal, int) { r.completed.Add(1) }
func (r *recorder) SaleFailed(string)                  { r.failed.Add(1) }
func (r *recorder) NumberCollision()                   { r.collisions.Add(1) }

func (r *recorder) MovementRecorded(stock.MovementType, int64) { r.movements.Add(1) }
func (r *recorder) MutationRejected(string)                    {}

type fixture struct {
	store *memory.Store
	stock *stock.Service
	svc   *invoice.Service
	rec   *recorder
}

func newFixture(t *testing.T, attempts int) *fixture {
	t.Helper()
	store := memory.New()
	now := func() time.Time { return saleDay }
	rec := &recorder{}
	stockSvc := stock.NewService(stock.ServiceConfig{
		Repo:      store.Movements(),
		Products:  store.Products(),
		TxManager: store,
		Publisher: store,
		Recorder:  rec,
		Now:       now,
	})
	svc := invoice.NewService(invoice.ServiceConfig{
		Repo:           store.Invoices(),
		Stock:          stockSvc,
		TxManager:      store,
		Numerator:      store.Numerator(),
		Publisher:      store,
		Recorder:       rec,
		NumberAttempts: attempts,
		Now:            now,
	})
	return &fixture{store: store, stock: stockSvc, svc: svc, rec: rec}
}

func (f *fixture) product(t *testing.T, code, price string, initial int64) *product.Product {
	t.Helper()
	p := product.NewProduct(code, "Product "+code)
	p.Category = "antibiotics"
	p.InitialStock = initial
	p.CachedStock = initial
	p.LowStockThreshold = 1
	p.SellingPrice = decimal.RequireFromString(price)
	p.PurchasePrice = p.SellingPrice.Div(decimal.NewFromInt(2))
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) stockOf(t *testing.T, productID id.ID) int64 {
	t.Helper()
	_, lvl, err := f.stock.LevelOf(context.Background(), productID)
	require.NoError(t, err)
	return lvl.CurrentStock
}

func line(p *product.Product, qty int64) invoice.SaleLine {
	return invoice.SaleLine{ProductID: p.ID, Quantity: qty}
}

func ptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCreateSale_Success(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a := f.product(t, "AMOX", "100", 10)
	b := f.product(t, "BAND", "45.50", 10)

	inv, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
		Items: []invoice.SaleLine{
			{ProductID: a.ID, Quantity: 3, DiscountPercentage: ptr("10")},
			line(b, 2),
		},
		PaymentMethod: invoice.PaymentCash,
		CustomerName:  "  Mariem  ",
	})
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-00001", inv.Number)
	assert.Equal(t, "361", inv.Subtotal.String())
	assert.Equal(t, "50.54", inv.TaxAmount.String())
	assert.Equal(t, "411.54", inv.Total.String())
	assert.Equal(t, invoice.StatusPaid, inv.PaymentStatus)
	require.NotNil(t, inv.CustomerName)
	assert.Equal(t, "Mariem", *inv.CustomerName)
	assert.Equal(t, "antibiotics", inv.Items[0].Category)

	assert.Equal(t, int64(7), f.stockOf(t, a.ID))
	assert.Equal(t, int64(8), f.stockOf(t, b.ID))

	hist, err := f.stock.Movements(ctx, stock.MovementFilter{Reference: inv.Number})
	require.NoError(t, err)
	assert.Equal(t, int64(2), hist.TotalCount)
	for _, m := range hist.Items {
		assert.Equal(t, stock.MovementOut, m.Type)
		assert.Equal(t, "sale", m.Reason)
	}

	stored, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)

	var created int
	for _, e := range f.store.Events() {
		if e.Type == events.TypeInvoiceCreated {
			created++
			assert.Equal(t, inv.ID, e.AggregateID)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), f.rec.completed.Load())
}

func TestCreateSale_FailingMiddleLineRollsBackEverything(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a := f.product(t, "A", "10", 10)
	b := f.product(t, "B", "20", 10)
	c := f.product(t, "C", "30", 10)
	f.store.InjectFault(memory.OpMovementAppend, 2, errors.New("connection reset by peer"))

	_, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 1), line(b, 2), line(c, 3)},
		PaymentMethod: invoice.PaymentCard,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeTransactionFailure))
	assert.Equal(t, 500, apperror.GetHTTPStatus(err))

	for _, p := range []*product.Product{a, b, c} {
		assert.Equal(t, int64(10), f.stockOf(t, p.ID), p.Code)
	}
	list, _, err := f.svc.List(ctx, invoice.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
	assert.Empty(t, f.store.Events())

	cfg := numerator.DefaultConfig(invoice.DefaultNumberPrefix)
	assert.Zero(t, f.store.Numerator().Current(cfg, saleDay), "counter rolls back with the sale")

	f.store.ClearFaults()
	inv, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 1)},
		PaymentMethod: invoice.PaymentCard,
	})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00001", inv.Number, "no gap after a failed sale")
}

func TestCreateSale_InsufficientStockSumsLines(t *testing.T) {
	f := newFixture(t, 3)
	a := f.product(t, "A", "10", 10)

	_, err := f.svc.CreateSale(context.Background(), invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 6), line(a, 6)},
		PaymentMethod: invoice.PaymentCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(12), appErr.Details["requested"])
	assert.Equal(t, a.Name, appErr.Details["product_name"])
	assert.Equal(t, int64(10), f.stockOf(t, a.ID))
	assert.Equal(t, int64(1), f.rec.failed.Load())
}

func TestCreateSale_UnknownProduct(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.svc.CreateSale(context.Background(), invoice.SaleRequest{
		Items:         []invoice.SaleLine{{ProductID: id.New(), Quantity: 1}},
		PaymentMethod: invoice.PaymentCash,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateSale_PrescriptionRequired(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	p := product.NewProduct("MORPH", "Morphine 10mg")
	p.Classification = product.ClassControlled
	p.InitialStock = 5
	p.SellingPrice = decimal.NewFromInt(200)
	require.NoError(t, f.store.Products().Create(ctx, p))

	_, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(p, 1)},
		PaymentMethod: invoice.PaymentCash,
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Details, "prescription_ref")

	inv, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
		Items:           []invoice.SaleLine{line(p, 1)},
		PaymentMethod:   invoice.PaymentCash,
		PrescriptionRef: "ORD-2026-117",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-117", *inv.PrescriptionRef)
}

func TestCreateSale_RetriesOnNumberCollision(t *testing.T) {
	f := newFixture(t, 3)
	a := f.product(t, "A", "10", 10)

	// numbers written by an import that bypassed the counter
	for _, n := range []string{"FAC-2026-00001", "FAC-2026-00002"} {
		inv := invoice.NewInvoice(saleDay, invoice.PaymentCash)
		inv.Number = n
		f.store.Invoices().Insert(inv)
	}

	inv, err := f.svc.CreateSale(context.Background(), invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 1)},
		PaymentMethod: invoice.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00003", inv.Number)
	assert.Equal(t, int64(1), f.rec.collisions.Load())
	assert.Equal(t, int64(9), f.stockOf(t, a.ID))
}

func TestCreateSale_CollisionRetriesExhausted(t *testing.T) {
	f := newFixture(t, 1)
	a := f.product(t, "A", "10", 10)
	taken := invoice.NewInvoice(saleDay, invoice.PaymentCash)
	taken.Number = "FAC-2026-00001"
	f.store.Invoices().Insert(taken)

	_, err := f.svc.CreateSale(context.Background(), invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 1)},
		PaymentMethod: invoice.PaymentCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeTransactionFailure))
	assert.Equal(t, int64(10), f.stockOf(t, a.ID))
}

func TestCreateSale_ConcurrentNumbering(t *testing.T) {
	f := newFixture(t, 3)
	a := f.product(t, "A", "5", 1000)

	const sales = 30
	numbers := make(chan string, sales)
	var wg sync.WaitGroup
	for i := 0; i < sales; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := f.svc.CreateSale(context.Background(), invoice.SaleRequest{
				Items:         []invoice.SaleLine{line(a, 1)},
				PaymentMethod: invoice.PaymentCash,
			})
			if err != nil {
				t.Errorf("sale failed: %v", err)
				return
			}
			numbers <- inv.Number
		}()
	}
	wg.Wait()
	close(numbers)

	var got []int64
	seen := map[string]bool{}
	for n := range numbers {
		require.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
		got = append(got, numerator.ParseNumber(n))
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, sales)
	for i, n := range got {
		assert.Equal(t, int64(i+1), n)
	}
	assert.Equal(t, int64(1000-sales), f.stockOf(t, a.ID))
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a := f.product(t, "A", "100", 10)

	inv, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 1)},
		PaymentMethod: invoice.PaymentCredit,
		PaidAmount:    ptr("0"),
	})
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPending, inv.PaymentStatus)
	assert.Equal(t, "114", inv.DueAmount.String())

	inv, err = f.svc.RecordPayment(ctx, inv.ID, decimal.NewFromInt(14))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPartial, inv.PaymentStatus)
	assert.Len(t, inv.Items, 1)

	_, err = f.svc.RecordPayment(ctx, inv.ID, decimal.NewFromInt(101))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	inv, err = f.svc.RecordPayment(ctx, inv.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, inv.PaymentStatus)
	assert.True(t, inv.DueAmount.IsZero())

	_, err = f.svc.RecordPayment(ctx, inv.ID, decimal.NewFromInt(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	_, err = f.svc.RecordPayment(ctx, id.New(), decimal.NewFromInt(1))
	assert.True(t, apperror.IsNotFound(err))
}

func TestList_FiltersAndStats(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a := f.product(t, "A", "100", 50)

	for _, paid := range []string{"0", "50", "114"} {
		_, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
			Items:         []invoice.SaleLine{line(a, 1)},
			PaymentMethod: invoice.PaymentCash,
			PaidAmount:    ptr(paid),
			CustomerName:  "Client " + paid,
		})
		require.NoError(t, err)
	}

	page, stats, err := f.svc.List(ctx, invoice.ListFilter{ListFilter: domain.ListFilter{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, "342", stats.Total.String())
	assert.Equal(t, "164", stats.Paid.String())
	assert.Equal(t, "178", stats.Due.String())
	assert.Equal(t, int64(1), stats.ByStatus[invoice.StatusPending])
	assert.Equal(t, int64(1), stats.ByStatus[invoice.StatusPartial])
	assert.Equal(t, int64(1), stats.ByStatus[invoice.StatusPaid])

	partial := invoice.StatusPartial
	page, stats, err = f.svc.List(ctx, invoice.ListFilter{Status: &partial})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Client 50", *page.Items[0].CustomerName)
	assert.Equal(t, int64(1), stats.Count)

	page, _, err = f.svc.List(ctx, invoice.ListFilter{ListFilter: domain.ListFilter{Search: "client 114"}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	bad := invoice.PaymentStatus("refunded")
	_, _, err = f.svc.List(ctx, invoice.ListFilter{Status: &bad})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestForExport_LoadsItems(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a := f.product(t, "A", "10", 10)
	b := f.product(t, "B", "20", 10)

	_, err := f.svc.CreateSale(ctx, invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 1), line(b, 1)},
		PaymentMethod: invoice.PaymentMobileMoney,
	})
	require.NoError(t, err)

	invoices, stats, err := f.svc.ForExport(ctx, invoice.ListFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Len(t, invoices[0].Items, 2)
	assert.Equal(t, int64(1), stats.Count)
}

func TestCreateSale_RecordsMovementsOnlyAfterCommit(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a := f.product(t, "AMOX", "100", 10)
	b := f.product(t, "BAND", "20", 10)
	req := invoice.SaleRequest{
		Items:         []invoice.SaleLine{line(a, 2), line(b, 1)},
		PaymentMethod: invoice.PaymentCash,
	}

	f.store.InjectFault(memory.OpOutboxPublish, 1, errors.New("outbox unavailable"))
	_, err := f.svc.CreateSale(ctx, req)
	require.Error(t, err)
	assert.Equal(t, int64(10), f.stockOf(t, a.ID))
	assert.Zero(t, f.rec.movements.Load(), "a rolled back sale must not count its stock lines")

	f.store.ClearFaults()
	_, err = f.svc.CreateSale(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.rec.movements.Load())
}
