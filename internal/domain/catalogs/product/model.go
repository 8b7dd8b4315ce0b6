// Package product provides the Product catalog: medicines and parapharmacy
// items with pricing, stock baseline and prescription classification.
package product

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/entity"
)

// Classification tells whether a product may be sold over the counter.
type Classification string

const (
	ClassOTC          Classification = "otc"
	ClassPrescription Classification = "prescription"
	ClassControlled   Classification = "controlled"
)

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	switch c {
	case ClassOTC, ClassPrescription, ClassControlled:
		return true
	}
	return false
}

// RequiresPrescription reports whether a sale needs a prescription reference.
func (c Classification) RequiresPrescription() bool {
	return c == ClassPrescription || c == ClassControlled
}

// Product is a sellable item. Quantity on hand is not stored here: it is
// InitialStock plus the movement ledger (see registers/stock).
type Product struct {
	entity.BaseEntity

	Code     string  `db:"code" json:"code"`
	Name     string  `db:"name" json:"name"`
	Category string  `db:"category" json:"category"`
	Batch    *string `db:"batch_number" json:"batch_number,omitempty"`

	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	SellingPrice  decimal.Decimal `db:"selling_price" json:"selling_price"`

	// InitialStock is the baseline quantity at creation. Fixed afterwards,
	// corrections go through adjustment movements.
	InitialStock      int64 `db:"initial_stock" json:"initial_stock"`
	LowStockThreshold int64 `db:"low_stock_threshold" json:"low_stock_threshold"`

	ExpiryDate     *time.Time     `db:"expiry_date" json:"expiry_date,omitempty"`
	Classification Classification `db:"classification" json:"classification"`

	// CachedStock mirrors the ledger projection, refreshed in the same
	// transaction as each movement. Never read it for business decisions.
	CachedStock int64 `db:"current_stock" json:"-"`
}

// NewProduct creates a Product with generated identity.
func NewProduct(code, name string) *Product {
	return &Product{
		BaseEntity:     entity.NewBaseEntity(),
		Code:           strings.TrimSpace(code),
		Name:           strings.TrimSpace(name),
		PurchasePrice:  decimal.Zero,
		SellingPrice:   decimal.Zero,
		Classification: ClassOTC,
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	err := apperror.NewValidation("invalid product")
	bad := false
	fail := func(field, msg string) {
		err.WithDetail(field, msg)
		bad = true
	}

	if strings.TrimSpace(p.Name) == "" {
		fail("name", "name is required")
	}
	if len(p.Name) > 255 {
		fail("name", "name must be at most 255 characters")
	}
	if len(p.Code) > 50 {
		fail("code", "code must be at most 50 characters")
	}
	if p.PurchasePrice.IsNegative() {
		fail("purchase_price", "purchase price cannot be negative")
	}
	if p.SellingPrice.IsNegative() {
		fail("selling_price", "selling price cannot be negative")
	}
	if p.InitialStock < 0 {
		fail("initial_stock", "initial stock cannot be negative")
	}
	if p.LowStockThreshold < 0 {
		fail("low_stock_threshold", "low stock threshold cannot be negative")
	}
	if !p.Classification.Valid() {
		fail("classification", "classification must be one of otc, prescription, controlled")
	}

	if bad {
		return err
	}
	return nil
}
