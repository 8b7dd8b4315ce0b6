// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const stockMovementsTable = "stock_movements"

var movementColumns = postgres.ExtractDBColumns[stock.Movement]()

// totalsSelect sums the ledger per movement type.
const totalsSelect = `
	COALESCE(SUM(quantity) FILTER (WHERE type = 'in'), 0)         AS total_in,
	COALESCE(SUM(quantity) FILTER (WHERE type = 'out'), 0)        AS total_out,
	COALESCE(SUM(quantity) FILTER (WHERE type = 'adjustment'), 0) AS total_adjustment`

// MovementRepo implements stock.Repository. The table is append-only, the
// repository has no update or delete.
type MovementRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ stock.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a new movement ledger repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a movement.
func (r *MovementRepo) Append(ctx context.Context, m *stock.Movement) error {
	sql, args, err := r.builder.
		Insert(stockMovementsTable).
		SetMap(postgres.ColumnMap(m, movementColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// Totals sums the movements of one product.
func (r *MovementRepo) Totals(ctx context.Context, productID id.ID) (stock.Totals, error) {
	var t stock.Totals

	sql, args, err := r.builder.
		Select(totalsSelect).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return t, fmt.Errorf("build totals query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		return t, fmt.Errorf("sum movements: %w", err)
	}
	return t, nil
}

// TotalsByProduct sums movements per product.
func (r *MovementRepo) TotalsByProduct(ctx context.Context, productIDs []id.ID) (map[id.ID]stock.Totals, error) {
	q := r.builder.
		Select("product_id", totalsSelect).
		From(stockMovementsTable).
		GroupBy("product_id")
	if len(productIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": productIDs})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals query: %w", err)
	}

	var rows []struct {
		ProductID id.ID `db:"product_id"`
		stock.Totals
	}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sum movements by product: %w", err)
	}

	out := make(map[id.ID]stock.Totals, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Totals
	}
	return out, nil
}

// List returns movements newest first.
func (r *MovementRepo) List(ctx context.Context, f stock.MovementFilter) (domain.ListResult[stock.Movement], error) {
	limit, offset := domain.ListFilter{Limit: f.Limit, Offset: f.Offset}.Page()
	result := domain.ListResult[stock.Movement]{Items: []stock.Movement{}, Limit: limit, Offset: offset}

	where := squirrel.And{}
	if f.ProductID != nil {
		where = append(where, squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.Type != nil {
		where = append(where, squirrel.Eq{"type": *f.Type})
	}
	if f.Reference != "" {
		where = append(where, squirrel.Eq{"reference": f.Reference})
	}
	if f.DateFrom != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *f.DateFrom})
	}
	if f.DateTo != nil {
		where = append(where, squirrel.Lt{"created_at": *f.DateTo})
	}

	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(stockMovementsTable).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	sql, args, err := r.builder.
		Select(movementColumns...).
		From(stockMovementsTable).
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}
