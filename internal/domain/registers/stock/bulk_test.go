package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/storage/memory"
)

func TestBulk_AllOrNothingRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 1)
	b := f.product(t, "B", 5, 1)

	items := []stock.BulkItem{
		{ProductID: a.ID, Type: stock.MovementIn, Quantity: 5},
		{ProductID: b.ID, Type: stock.MovementOut, Quantity: 6},
		{ProductID: a.ID, Type: stock.MovementOut, Quantity: 1},
	}

	report, err := f.svc.Bulk(ctx, stock.BulkAllOrNothing, items)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, 2, appErr.Details["line"])

	assert.Equal(t, int64(10), f.level(t, a.ID).CurrentStock)
	assert.Equal(t, int64(5), f.level(t, b.ID).CurrentStock)
}

func TestBulk_AllOrNothingApplies(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 10, 1)

	report, err := f.svc.Bulk(context.Background(), stock.BulkAllOrNothing, []stock.BulkItem{
		{ProductID: a.ID, Type: stock.MovementIn, Quantity: 5},
		{ProductID: a.ID, Type: stock.MovementOut, Quantity: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, int64(3), report.Lines[1].Level.CurrentStock)
}

func TestBulk_BestEffortKeepsGoodLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 1)
	b := f.product(t, "B", 5, 1)

	report, err := f.svc.Bulk(ctx, stock.BulkBestEffort, []stock.BulkItem{
		{ProductID: a.ID, Type: stock.MovementOut, Quantity: 4},
		{ProductID: b.ID, Type: stock.MovementOut, Quantity: 6},
		{ProductID: b.ID, Type: stock.MovementAdjustment, Quantity: 0, Reason: "count"},
		{ProductID: b.ID, Type: stock.MovementIn, Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 2, report.Failed)

	require.Len(t, report.Lines, 4)
	assert.Equal(t, stock.LineApplied, report.Lines[0].Status)
	assert.Equal(t, stock.LineFailed, report.Lines[1].Status)
	assert.Equal(t, apperror.CodeInsufficientStock, report.Lines[1].Error.Code)
	assert.Equal(t, apperror.CodeInvalidQuantity, report.Lines[2].Error.Code)
	assert.Equal(t, stock.LineApplied, report.Lines[3].Status)

	assert.Equal(t, int64(6), f.level(t, a.ID).CurrentStock)
	assert.Equal(t, int64(7), f.level(t, b.ID).CurrentStock)
}

func TestBulk_BestEffortAbortsOnInfrastructureError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 1)
	f.store.InjectFault(memory.OpMovementAppend, 2, errors.New("connection reset"))

	_, err := f.svc.Bulk(ctx, stock.BulkBestEffort, []stock.BulkItem{
		{ProductID: a.ID, Type: stock.MovementOut, Quantity: 1},
		{ProductID: a.ID, Type: stock.MovementOut, Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeTransactionFailure))
	assert.Equal(t, int64(10), f.level(t, a.ID).CurrentStock)
}

func TestBulk_RejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Bulk(ctx, stock.BulkMode("sometimes"), []stock.BulkItem{{}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Bulk(ctx, stock.BulkBestEffort, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Bulk(ctx, stock.BulkAllOrNothing, make([]stock.BulkItem, stock.MaxBulkItems+1))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestBulk_OnlyCommittedMovementsAreRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 5, 1)

	_, err := f.svc.ApplyAllOrNothing(ctx, []stock.BulkItem{
		{ProductID: a.ID, Type: stock.MovementIn, Quantity: 3},
		{ProductID: a.ID, Type: stock.MovementIn, Quantity: 4},
		{ProductID: a.ID, Type: stock.MovementOut, Quantity: 100},
	})
	require.Error(t, err)
	assert.Equal(t, int64(5), f.level(t, a.ID).CurrentStock)
	assert.Zero(t, f.recorder.recorded.Load(), "rolled back lines must not reach metrics")
	assert.Zero(t, f.cache.invalidations.Load())

	f.store.InjectFault(memory.OpMovementAppend, 2, errors.New("connection reset"))
	_, err = f.svc.ApplyBestEffort(ctx, []stock.BulkItem{
		{ProductID: a.ID, Type: stock.MovementIn, Quantity: 1},
		{ProductID: a.ID, Type: stock.MovementIn, Quantity: 1},
	})
	require.Error(t, err)
	assert.Zero(t, f.recorder.recorded.Load())

	report, err := f.svc.ApplyBestEffort(ctx, []stock.BulkItem{
		{ProductID: a.ID, Type: stock.MovementIn, Quantity: 3},
		{ProductID: a.ID, Type: stock.MovementOut, Quantity: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, int64(1), f.recorder.recorded.Load())
	assert.Positive(t, f.recorder.rejected.Load())

	_, err = f.svc.AddStock(ctx, stock.Change{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.recorder.recorded.Load())
}
