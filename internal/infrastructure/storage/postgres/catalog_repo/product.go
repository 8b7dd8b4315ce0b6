package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

var productColumns = postgres.ExtractDBColumns[product.Product]()

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txm, "product", productsTable, productColumns,
			func() *product.Product { return new(product.Product) }),
	}
}

// Create inserts a product.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.BaseCatalogRepo.Create(ctx, p, p.Code)
}

// Update stores descriptive fields. initial_stock and the cached stock
// column are never rewritten here.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	next, err := r.BaseCatalogRepo.Update(ctx, p, p.ID, p.Version, p.Code, "initial_stock", "current_stock")
	if err != nil {
		return err
	}
	p.Version = next
	return nil
}

// SetCachedStock refreshes the cached current_stock column.
func (r *ProductRepo) SetCachedStock(ctx context.Context, productID id.ID, qty int64) error {
	sql, args, err := r.Builder().
		Update(productsTable).
		Set("current_stock", qty).
		Where(squirrel.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cached stock update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update cached stock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID.String())
	}
	return nil
}

// List retrieves products with filtering and pagination, ordered by name.
func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	limit, offset := filter.Page()
	result := domain.ListResult[*product.Product]{Limit: limit, Offset: offset}

	q := r.baseSelect()
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := postgres.ContainsPattern(search)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}
	if filter.Category != "" {
		q = q.Where(squirrel.Expr("LOWER(category) = LOWER(?)", filter.Category))
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}

	total, err := r.count(ctx, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	items, err := r.selectAll(ctx, q.OrderBy("name", "code").Limit(uint64(limit)).Offset(uint64(offset)))
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

// ListActive returns every product without deletion mark, ordered by name.
func (r *ProductRepo) ListActive(ctx context.Context) ([]*product.Product, error) {
	return r.selectAll(ctx, r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("name", "code"))
}
