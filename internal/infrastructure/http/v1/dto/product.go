package dto

import (
	"strings"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/registers/stock"
)

// ProductRequest is the body of product create and update.
type ProductRequest struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	BatchNumber       *string         `json:"batch_number"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	InitialStock      int64           `json:"initial_stock"`
	LowStockThreshold int64           `json:"low_stock_threshold"`
	ExpiryDate        string          `json:"expiry_date"`
	Classification    string          `json:"classification"`

	// Version is required on update.
	Version int `json:"version"`
}

// ToProduct builds a new product.
func (r *ProductRequest) ToProduct() (*product.Product, error) {
	p := product.NewProduct(r.Code, r.Name)
	p.InitialStock = r.InitialStock
	if err := r.ApplyTo(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyTo copies the mutable fields onto p. Code, initial stock and
// version are left to the caller.
func (r *ProductRequest) ApplyTo(p *product.Product) error {
	expiry, err := ParseDate("expiry_date", r.ExpiryDate)
	if err != nil {
		return err
	}

	p.Name = strings.TrimSpace(r.Name)
	p.Category = strings.TrimSpace(r.Category)
	p.Batch = r.BatchNumber
	p.PurchasePrice = r.PurchasePrice
	p.SellingPrice = r.SellingPrice
	p.LowStockThreshold = r.LowStockThreshold
	p.ExpiryDate = expiry
	if r.Classification != "" {
		p.Classification = product.Classification(strings.ToLower(r.Classification))
	}
	return nil
}

// ProductResponse is a product with its current stock level.
type ProductResponse struct {
	*product.Product
	Stock stock.Level `json:"stock"`
}

// ProductQuery for GET /products.
type ProductQuery struct {
	PageQuery
	Category       string `form:"category"`
	IncludeDeleted bool   `form:"include_deleted"`
}

// ToFilter converts to the domain filter.
func (q ProductQuery) ToFilter() product.ListFilter {
	f := product.ListFilter{ListFilter: q.ToListFilter(), Category: strings.TrimSpace(q.Category)}
	f.IncludeDeleted = q.IncludeDeleted
	return f
}
