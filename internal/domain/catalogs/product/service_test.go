package product_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/infrastructure/storage/memory"
)

func newService() (*product.Service, *memory.Store) {
	store := memory.New()
	return product.NewService(store.Products(), store, store.Numerator()), store
}

func TestCreate_GeneratesCode(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first := product.NewProduct("", "Doliprane 1000")
	first.InitialStock = 40
	require.NoError(t, svc.Create(ctx, first))
	assert.Equal(t, "PRD-000001", first.Code)
	assert.Equal(t, int64(40), first.CachedStock)

	second := product.NewProduct("", "Smecta")
	require.NoError(t, svc.Create(ctx, second))
	assert.Equal(t, "PRD-000002", second.Code)

	got, err := svc.GetByCode(ctx, "PRD-000002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService()
	p := product.NewProduct("X1", "")
	p.SellingPrice = decimal.NewFromInt(-5)
	p.Classification = "herbal"

	err := svc.Create(context.Background(), p)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Details, "name")
	assert.Contains(t, appErr.Details, "selling_price")
	assert.Contains(t, appErr.Details, "classification")
}

func TestCreate_DuplicateCode(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, product.NewProduct("AMX", "Amoxicillin")))

	err := svc.Create(ctx, product.NewProduct("AMX", "Amoxil"))
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestUpdate_OptimisticLock(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p := product.NewProduct("AMX", "Amoxicillin")
	p.InitialStock = 10
	require.NoError(t, svc.Create(ctx, p))

	a, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	b, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)

	a.SellingPrice = decimal.NewFromInt(120)
	require.NoError(t, svc.Update(ctx, a))

	b.Name = "Amoxil"
	err = svc.Update(ctx, b)
	assert.True(t, apperror.IsConcurrentModification(err))

	got, _ := svc.GetByID(ctx, p.ID)
	assert.Equal(t, "Amoxicillin", got.Name)
	assert.True(t, decimal.NewFromInt(120).Equal(got.SellingPrice))
}

func TestDelete_SoftDeletes(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p := product.NewProduct("AMX", "Amoxicillin")
	require.NoError(t, svc.Create(ctx, p))

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err := svc.GetByID(ctx, p.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.True(t, apperror.IsNotFound(svc.Delete(ctx, p.ID)))

	active, err := svc.List(ctx, product.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, active.TotalCount)

	all, err := svc.List(ctx, product.ListFilter{ListFilter: domain.ListFilter{IncludeDeleted: true}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.TotalCount)
}
