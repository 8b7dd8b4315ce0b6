package spreadsheet

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/domain/registers/stock"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestWriteInvoices(t *testing.T) {
	customer := "Aminetou"
	inv := invoice.NewInvoice(time.Date(2026, 7, 3, 10, 15, 0, 0, time.UTC), invoice.PaymentCash)
	inv.Number = "FAC-2026-00042"
	inv.CustomerName = &customer
	inv.AddItem(product.NewProduct("AMX", "Amoxicillin"), 2, decimal.NewFromInt(50), decimal.Zero)
	inv.Recalculate(decimal.NewFromInt(14), decimal.Zero)
	inv.SetPaid(inv.Total)

	stats := invoice.NewStats()
	stats.Add(inv)

	var buf bytes.Buffer
	require.NoError(t, WriteInvoices(&buf, []*invoice.Invoice{inv}, stats))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetInvoices, SheetItems, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetInvoices)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Number", rows[0][0])
	assert.Equal(t, "FAC-2026-00042", rows[1][0])
	assert.Equal(t, "Aminetou", rows[1][2])
	assert.Equal(t, "paid", rows[1][6])
	assert.Equal(t, "114", rows[1][11])

	items, err := f.GetRows(SheetItems)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"FAC-2026-00042", "1", "AMX", "Amoxicillin"}, items[1][:4])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoices", "1"}, summary[1])
}

func TestReadStockImport(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Type", "Code", "Quantity", "Reason"},
		{"IN", "AMX", 40, "delivery 118"},
		{},
		{"adjustment", "DOLI", -3, "broken"},
	})

	rows, err := ReadStockImport(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ImportRow{Line: 2, Code: "AMX", Type: stock.MovementIn, Quantity: 40, Reason: "delivery 118"}, rows[0])
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, stock.MovementAdjustment, rows[1].Type)
	assert.Equal(t, int64(-3), rows[1].Quantity)
}

func TestReadStockImport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]any
		detail string
	}{
		{"missing column", [][]any{{"code", "type"}, {"A", "in"}}, "quantity"},
		{"bad type", [][]any{{"code", "type", "quantity"}, {"A", "transfer", 1}}, "row 2.type"},
		{"bad quantity", [][]any{{"code", "type", "quantity"}, {"A", "in", "ten"}}, "row 2.quantity"},
		{"missing code", [][]any{{"code", "type", "quantity"}, {"", "out", 1}}, "row 2.code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadStockImport(workbook(t, tt.rows))
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Contains(t, appErr.Details, tt.detail)
		})
	}

	_, err := ReadStockImport(bytes.NewReader([]byte("not a workbook")))
	assert.True(t, apperror.HasCode(err, apperror.CodeBadRequest))
}

func TestResolveImport(t *testing.T) {
	amx := product.NewProduct("AMX", "Amoxicillin")
	calls := 0
	lookup := func(_ context.Context, code string) (*product.Product, error) {
		calls++
		if code == "AMX" {
			return amx, nil
		}
		return nil, apperror.NewNotFound("product", code)
	}

	items, err := ResolveImport(context.Background(), []ImportRow{
		{Line: 2, Code: "AMX", Type: stock.MovementIn, Quantity: 5},
		{Line: 3, Code: "AMX", Type: stock.MovementOut, Quantity: 2},
	}, lookup)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, amx.ID, items[1].ProductID)
	assert.Equal(t, 1, calls, "codes are looked up once")

	_, err = ResolveImport(context.Background(), []ImportRow{
		{Line: 2, Code: "AMX", Type: stock.MovementIn, Quantity: 5},
		{Line: 3, Code: "NOPE", Type: stock.MovementIn, Quantity: 5},
	}, lookup)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Details, "row 3.code")
}
