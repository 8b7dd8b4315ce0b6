package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/registers/stock"
)

// ImportRow is one data row of a stock import workbook. Line is the
// 1-based spreadsheet row number.
type ImportRow struct {
	Line      int
	Code      string
	Type      stock.MovementType
	Quantity  int64
	Reason    string
	Reference string
}

var importColumns = []string{"code", "type", "quantity", "reason", "reference"}

// ReadStockImport parses the first sheet of an XLSX workbook. The first row
// must be a header naming at least code, type and quantity; column order is
// free. Blank rows are skipped.
func ReadStockImport(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperror.NewBadRequest("file is not a valid xlsx workbook").WithCause(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperror.NewBadRequest("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, apperror.NewValidation("workbook is empty")
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range importColumns[:3] {
		if _, ok := cols[required]; !ok {
			return nil, apperror.NewFieldValidation(required, "missing column "+required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	verr := apperror.NewValidation("import contains invalid rows")
	invalid := false
	out := make([]ImportRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}

		ir := ImportRow{
			Line:      line,
			Code:      cell(row, "code"),
			Type:      stock.MovementType(strings.ToLower(cell(row, "type"))),
			Reason:    cell(row, "reason"),
			Reference: cell(row, "reference"),
		}
		if ir.Code == "" {
			verr.WithDetail(fmt.Sprintf("row %d.code", line), "code is required")
			invalid = true
		}
		if !ir.Type.Valid() {
			verr.WithDetail(fmt.Sprintf("row %d.type", line), "type must be one of in, out, adjustment")
			invalid = true
		}
		q, err := strconv.ParseInt(cell(row, "quantity"), 10, 64)
		if err != nil {
			verr.WithDetail(fmt.Sprintf("row %d.quantity", line), "quantity must be an integer")
			invalid = true
		}
		ir.Quantity = q
		out = append(out, ir)
	}

	if invalid {
		return nil, verr
	}
	if len(out) == 0 {
		return nil, apperror.NewValidation("workbook has no data rows")
	}
	if len(out) > stock.MaxBulkItems {
		return nil, apperror.NewValidation(fmt.Sprintf("at most %d rows can be imported at once", stock.MaxBulkItems))
	}
	return out, nil
}

// ProductLookup resolves a product code.
type ProductLookup func(ctx context.Context, code string) (*product.Product, error)

// ResolveImport maps import rows to bulk items. Unknown codes are reported
// together as a validation error.
func ResolveImport(ctx context.Context, rows []ImportRow, lookup ProductLookup) ([]stock.BulkItem, error) {
	byCode := map[string]*product.Product{}
	verr := apperror.NewValidation("import references unknown products")
	missing := false

	items := make([]stock.BulkItem, 0, len(rows))
	for _, r := range rows {
		p, seen := byCode[r.Code]
		if !seen {
			found, err := lookup(ctx, r.Code)
			switch {
			case apperror.IsNotFound(err):
				found = nil
			case err != nil:
				return nil, err
			}
			byCode[r.Code] = found
			p = found
		}
		if p == nil {
			verr.WithDetail(fmt.Sprintf("row %d.code", r.Line), "unknown product code "+r.Code)
			missing = true
			continue
		}
		items = append(items, stock.BulkItem{
			ProductID: p.ID,
			Type:      r.Type,
			Quantity:  r.Quantity,
			Reason:    r.Reason,
			Reference: r.Reference,
		})
	}

	if missing {
		return nil, verr
	}
	return items, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
