package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/documents/invoice"
)

func TestExtractDBColumns_Product(t *testing.T) {
	cols := ExtractDBColumns[product.Product]()

	assert.Equal(t, []string{"id", "deletion_mark", "version", "created_at", "updated_at"}, cols[:5])
	for _, expected := range []string{"code", "name", "batch_number", "initial_stock", "current_stock", "expiry_date", "classification"} {
		assert.Contains(t, cols, expected)
	}
}

func TestExtractDBColumns_SkipsIgnoredFields(t *testing.T) {
	cols := ExtractDBColumns[invoice.Invoice]()

	assert.Contains(t, cols, "number")
	assert.Contains(t, cols, "insurance_coverage")
	assert.NotContains(t, cols, "Items")
	assert.NotContains(t, cols, "-")
}

func TestStructToMap_Product(t *testing.T) {
	expiry := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	p := product.NewProduct("AMX", "Amoxicillin 500mg")
	p.Version = 4
	p.SellingPrice = decimal.RequireFromString("125.50")
	p.ExpiryDate = &expiry
	p.CachedStock = 12

	m := StructToMap(p)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, 4, m["version"])
	assert.Equal(t, "AMX", m["code"])
	assert.Equal(t, p.SellingPrice, m["selling_price"])
	assert.Equal(t, &expiry, m["expiry_date"])
	assert.Equal(t, int64(12), m["current_stock"])
	assert.Equal(t, product.ClassOTC, m["classification"])
}

func TestColumnMap_RestrictsColumns(t *testing.T) {
	p := product.NewProduct("AMX", "Amoxicillin")
	m := ColumnMap(p, []string{"code", "name", "missing"})

	assert.Len(t, m, 2)
	assert.Equal(t, "Amoxicillin", m["name"])
}

func TestContainsPattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, "%FAC-2026%", ContainsPattern("FAC-2026"))
	assert.Equal(t, `%100\%%`, ContainsPattern("100%"))
	assert.Equal(t, `%a\_b%`, ContainsPattern("a_b"))
	assert.Equal(t, `%c:\\tmp%`, ContainsPattern(`c:\tmp`))
}
