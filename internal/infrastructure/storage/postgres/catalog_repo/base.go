// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo provides the CRUD shared by catalog tables: soft delete
// through deletion_mark and optimistic locking on version.
type BaseCatalogRepo[T any] struct {
	txm        *postgres.TxManager
	entity     string
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](
	txm *postgres.TxManager,
	entity, tableName string,
	selectCols []string,
	newFn func() T,
) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txm:        txm,
		entity:     entity,
		tableName:  tableName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseCatalogRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// Create inserts a new entity using its "db" tags. A unique violation is
// reported as DUPLICATE on the violated column.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T, uniqueValue string) error {
	data := postgres.ColumnMap(entity, r.selectCols)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err = r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		if mapped := postgres.MapUniqueViolation(err, r.entity, r.tableName, uniqueValue); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes the mutable columns when the stored version matches, then
// returns the new version. immutable lists columns never rewritten besides
// id, version and created_at.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, entity T, entityID id.ID, version int, uniqueValue string, immutable ...string) (int, error) {
	skip := map[string]bool{"id": true, "version": true, "created_at": true, "updated_at": true, "deletion_mark": true}
	for _, c := range immutable {
		skip[c] = true
	}

	data := postgres.StructToMap(entity)
	set := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if skip[col] {
			continue
		}
		if val, ok := data[col]; ok {
			set[col] = val
		}
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	var next int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&next); err != nil {
		if pgxscan.NotFound(err) {
			return 0, apperror.NewConcurrentModification(r.entity, entityID.String())
		}
		if mapped := postgres.MapUniqueViolation(err, r.entity, r.tableName, uniqueValue); mapped != err {
			return 0, mapped
		}
		return 0, fmt.Errorf("update %s: %w", r.tableName, err)
	}
	return next, nil
}

// baseSelect creates a SELECT builder.
func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// getOne runs q and scans a single row, reporting NOT_FOUND for key.
func (r *BaseCatalogRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	entity := r.newFn()

	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entity, key)
		}
		return entity, fmt.Errorf("get %s: %w", r.entity, err)
	}
	return entity, nil
}

// GetByID retrieves an entity by ID, soft-deleted ones included.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID.String())
}

// GetForUpdate retrieves an entity and locks its row until the end of the
// surrounding transaction.
func (r *BaseCatalogRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	if !r.txm.InTransaction(ctx) {
		var zero T
		return zero, fmt.Errorf("get %s for update requires transaction context", r.entity)
	}
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID.String())
}

// GetByCode retrieves a non-deleted entity by code.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"code": code}).
		Where(squirrel.Eq{"deletion_mark": false})
	return r.getOne(ctx, q, code)
}

// SetDeletionMark sets or clears the deletion mark (soft delete).
func (r *BaseCatalogRepo[T]) SetDeletionMark(ctx context.Context, entityID id.ID, marked bool) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("deletion_mark", marked).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set deletion mark: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("execute set deletion mark: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entity, entityID.String())
	}
	return nil
}

// count returns the number of rows matched by q.
func (r *BaseCatalogRepo[T]) count(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.tableName, err)
	}
	return n, nil
}

// selectAll scans every row of q.
func (r *BaseCatalogRepo[T]) selectAll(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	items := []T{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return items, nil
}
