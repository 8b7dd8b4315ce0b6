package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk inserts rows with the COPY protocol. It must run
// inside a transaction so the rows commit with the rest of the change.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice inserts rows into table. Each row lists values in columns
// order.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// Rows builds COPY rows from structs using their db tags.
func Rows[T any](items []T, columns []string) [][]any {
	out := make([][]any, 0, len(items))
	for i := range items {
		m := StructToMap(&items[i])
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = m[c]
		}
		out = append(out, row)
	}
	return out
}
