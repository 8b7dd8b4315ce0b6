package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
)

// MaxSaleLines bounds the number of lines in one sale.
const MaxSaleLines = 200

// SaleLine is one requested line of a sale.
type SaleLine struct {
	ProductID          id.ID
	Quantity           int64
	UnitPrice          *decimal.Decimal // product selling price when nil
	DiscountPercentage *decimal.Decimal
}

// SaleRequest is the input of CreateSale.
type SaleRequest struct {
	Items             []SaleLine
	PaymentMethod     PaymentMethod
	PaidAmount        *decimal.Decimal // equals the total when nil
	CustomerName      string
	CustomerPhone     string
	PrescriptionRef   string
	InsuranceCoverage *decimal.Decimal
	Notes             string
}

// Validate checks the request shape. Field errors are collected into one
// VALIDATION_ERROR keyed by field path (items[0].quantity, ...).
func (r *SaleRequest) Validate() error {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.PrescriptionRef = strings.TrimSpace(r.PrescriptionRef)
	r.Notes = strings.TrimSpace(r.Notes)

	err := apperror.NewValidation("invalid sale request")
	failed := false
	fail := func(field, msg string) {
		err.WithDetail(field, msg)
		failed = true
	}

	switch {
	case len(r.Items) == 0:
		fail("items", "at least one item is required")
	case len(r.Items) > MaxSaleLines:
		fail("items", fmt.Sprintf("at most %d items per sale", MaxSaleLines))
	}
	for i, line := range r.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if id.IsNil(line.ProductID) {
			fail(prefix+"product_id", "product_id is required")
		}
		if line.Quantity <= 0 {
			fail(prefix+"quantity", "quantity must be greater than zero")
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			fail(prefix+"unit_price", "unit_price must not be negative")
		}
		if line.DiscountPercentage != nil && !types.IsPercentage(*line.DiscountPercentage) {
			fail(prefix+"discount_percentage", "discount_percentage must be between 0 and 100")
		}
	}

	if !r.PaymentMethod.Valid() {
		fail("payment_method", "payment_method must be one of cash, card, mobile_money, insurance, credit")
	}
	if r.PaidAmount != nil && r.PaidAmount.IsNegative() {
		fail("paid_amount", "paid_amount must not be negative")
	}
	if r.InsuranceCoverage != nil && !types.IsPercentage(*r.InsuranceCoverage) {
		fail("insurance_coverage_percentage", "insurance_coverage_percentage must be between 0 and 100")
	}
	if len(r.CustomerName) > 255 {
		fail("customer_name", "customer_name must be at most 255 characters")
	}
	if len(r.CustomerPhone) > 30 {
		fail("customer_phone", "customer_phone must be at most 30 characters")
	}
	if len(r.PrescriptionRef) > 100 {
		fail("prescription_ref", "prescription_ref must be at most 100 characters")
	}

	if failed {
		return err
	}
	return nil
}

// requested sums quantities per product.
func (r *SaleRequest) requested() map[id.ID]int64 {
	out := make(map[id.ID]int64, len(r.Items))
	for _, line := range r.Items {
		out[line.ProductID] += line.Quantity
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
