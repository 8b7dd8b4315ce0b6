package stock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/storage/memory"
)

var fixedNow = time.Date(2026, 4, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	svc      *stock.Service
	cache    *countingCache
	recorder *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	cache := &countingCache{}
	recorder := &countingRecorder{}
	svc := stock.NewService(stock.ServiceConfig{
		Repo:      store.Movements(),
		Products:  store.Products(),
		TxManager: store,
		Publisher: store,
		Cache:     cache,
		Recorder:  recorder,
		Now:       func() time.Time { return fixedNow },
	})
	return &fixture{store: store, svc: svc, cache: cache, recorder: recorder}
}

func (f *fixture) product(t *testing.T, code string, initial, threshold int64) *product.Product {
	t.Helper()
	p := product.NewProduct(code, "Product "+code)
	p.InitialStock = initial
	p.CachedStock = initial
	p.LowStockThreshold = threshold
	p.PurchasePrice = decimal.NewFromInt(10)
	p.SellingPrice = decimal.NewFromInt(15)
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) level(t *testing.T, productID id.ID) stock.Level {
	t.Helper()
	_, lvl, err := f.svc.LevelOf(context.Background(), productID)
	require.NoError(t, err)
	return lvl
}

type countingCache struct {
	invalidations atomic.Int64
	mu            sync.Mutex
	stored        *stock.Dashboard
}

func (c *countingCache) Get(context.Context) (*stock.Dashboard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored, c.stored != nil
}

func (c *countingCache) Set(_ context.Context, d *stock.Dashboard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = d
}

func (c *countingCache) Invalidate(context.Context) {
	c.invalidations.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = nil
}

type countingRecorder struct {
	recorded atomic.Int64
	rejected atomic.Int64
}

func (r *countingRecorder) MovementRecorded(stock.MovementType, int64) { r.recorded.Add(1) }

func (r *countingRecorder) MutationRejected(string) { r.rejected.Add(1) }

func TestRemoveStock_WorkedScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "AMOX", 100, 20)

	res, err := f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.Level.CurrentStock)
	assert.False(t, res.Level.IsLowStock)

	res, err = f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: 55})
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Level.CurrentStock)
	assert.True(t, res.Level.IsLowStock)

	_, err = f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: 20})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(20), appErr.Details["requested"])
	assert.Equal(t, int64(15), appErr.Details["available"])

	assert.Equal(t, int64(15), f.level(t, p.ID).CurrentStock)

	stored, err := f.store.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), stored.CachedStock)
}

func TestApply_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "IBU", 10, 2)

	tests := []struct {
		name string
		typ  stock.MovementType
		c    stock.Change
		code string
	}{
		{"zero in", stock.MovementIn, stock.Change{ProductID: p.ID, Quantity: 0}, apperror.CodeInvalidQuantity},
		{"negative out", stock.MovementOut, stock.Change{ProductID: p.ID, Quantity: -1}, apperror.CodeInvalidQuantity},
		{"zero adjustment", stock.MovementAdjustment, stock.Change{ProductID: p.ID, Quantity: 0, Reason: "count"}, apperror.CodeInvalidQuantity},
		{"adjustment without reason", stock.MovementAdjustment, stock.Change{ProductID: p.ID, Quantity: 3}, apperror.CodeValidation},
		{"missing product", stock.MovementIn, stock.Change{Quantity: 1}, apperror.CodeValidation},
		{"unknown product", stock.MovementIn, stock.Change{ProductID: id.New(), Quantity: 1}, apperror.CodeNotFound},
		{"unknown type", stock.MovementType("transfer"), stock.Change{ProductID: p.ID, Quantity: 1}, apperror.CodeValidation},
		{"adjustment below zero", stock.MovementAdjustment, stock.Change{ProductID: p.ID, Quantity: -11, Reason: "breakage"}, apperror.CodeNegativeResultingStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Apply(context.Background(), tt.typ, tt.c)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}

	assert.Equal(t, int64(10), f.level(t, p.ID).CurrentStock)
}

func TestAdjustStock_SignedDelta(t *testing.T) {
	f := newFixture(t)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: id.New().String(), Role: "storekeeper"})
	p := f.product(t, "VITC", 10, 2)

	res, err := f.svc.AdjustStock(ctx, stock.Change{ProductID: p.ID, Quantity: -10, Reason: "expired batch"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Level.CurrentStock)
	assert.True(t, res.Level.IsOutOfStock)
	require.NotNil(t, res.Movement.UserID)

	res, err = f.svc.AdjustStock(ctx, stock.Change{ProductID: p.ID, Quantity: 4, Reason: "found in back room"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Level.CurrentStock)
}

func TestRemoveStock_DeletedProductIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "OLD", 10, 2)
	require.NoError(t, f.store.Products().SetDeletionMark(ctx, p.ID, true))

	_, err := f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: 1})
	assert.True(t, apperror.IsNotFound(err))
}

func TestRemoveStock_ConcurrentNoOversell(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "DOLI", 100, 5)

	var ok, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RemoveStock(context.Background(), stock.Change{ProductID: p.ID, Quantity: 10})
			switch {
			case err == nil:
				ok.Add(1)
			case apperror.HasCode(err, apperror.CodeInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok.Load())
	assert.Equal(t, int64(15), rejected.Load())
	assert.Equal(t, int64(0), f.level(t, p.ID).CurrentStock)
}

func TestRemoveStock_PublishesLowStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "SPAS", 30, 10)

	for _, q := range []int64{15, 6, 2} {
		_, err := f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: q})
		require.NoError(t, err)
	}

	var lows int
	for _, e := range f.store.Events() {
		if e.Type == events.TypeStockLow {
			lows++
		}
	}
	assert.Equal(t, 1, lows, "only the 15 -> 9 crossing raises an alert")
}

func TestRemoveStock_RollsBackWhenCachedStockWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "SMEC", 10, 2)
	f.store.InjectFault(memory.OpCachedStockSave, 1, errors.New("connection reset"))

	_, err := f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: 3})
	require.Error(t, err)

	hist, err := f.svc.Movements(ctx, stock.MovementFilter{ProductID: &p.ID})
	require.NoError(t, err)
	assert.Zero(t, hist.TotalCount, "movement must not survive a failed transaction")
}

func TestDashboard_CachedUntilMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "ZINC", 12, 10)

	first, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, first.LowStock)

	cached, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Same(t, first, cached)

	_, err = f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: 5})
	require.NoError(t, err)
	assert.Positive(t, f.cache.invalidations.Load())

	fresh, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, fresh.LowStock, 1)
	assert.Equal(t, "ZINC", fresh.LowStock[0].Code)
}

func TestReconcile_FixesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "CALC", 50, 5)
	q := f.product(t, "MAGN", 20, 5)

	_, err := f.svc.RemoveStock(ctx, stock.Change{ProductID: p.ID, Quantity: 8})
	require.NoError(t, err)
	require.NoError(t, f.store.Products().SetCachedStock(ctx, p.ID, 999))

	drifts, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, p.ID, drifts[0].ProductID)
	assert.Equal(t, int64(999), drifts[0].Cached)
	assert.Equal(t, int64(42), drifts[0].Actual)

	stored, _ := f.store.Products().GetByID(ctx, p.ID)
	assert.Equal(t, int64(42), stored.CachedStock)
	untouched, _ := f.store.Products().GetByID(ctx, q.ID)
	assert.Equal(t, int64(20), untouched.CachedStock)
}
