// Package invoice provides the sale invoice document: the atomic sale
// transaction, payment tracking and invoice reporting.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/entity"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/catalogs/product"
)

// PaymentMethod is how the customer settles the invoice.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentCard        PaymentMethod = "card"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentInsurance   PaymentMethod = "insurance"
	PaymentCredit      PaymentMethod = "credit"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobileMoney, PaymentInsurance, PaymentCredit:
		return true
	}
	return false
}

// PaymentStatus only moves forward: pending, partial, paid.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == StatusPending || s == StatusPartial || s == StatusPaid
}

// StatusFor derives the payment status from the amounts.
func StatusFor(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// Invoice is a finalized sale. It is immutable after creation except for
// the payment fields.
type Invoice struct {
	entity.BaseEntity

	Number   string    `db:"number" json:"number"`
	IssuedAt time.Time `db:"issued_at" json:"issued_at"`

	CustomerName    *string `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone   *string `db:"customer_phone" json:"customer_phone,omitempty"`
	PrescriptionRef *string `db:"prescription_ref" json:"prescription_ref,omitempty"`
	Notes           *string `db:"notes" json:"notes,omitempty"`

	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`

	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountTotal decimal.Decimal `db:"discount_total" json:"discount_total"`
	TaxRate       decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	TaxAmount     decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	Total         decimal.Decimal `db:"total" json:"total"`
	PaidAmount    decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	DueAmount     decimal.Decimal `db:"due_amount" json:"due_amount"`
	ChangeAmount  decimal.Decimal `db:"change_amount" json:"change_amount"`

	InsuranceCoverage   decimal.Decimal `db:"insurance_coverage" json:"insurance_coverage_percentage"`
	ReimbursementAmount decimal.Decimal `db:"reimbursement_amount" json:"reimbursement_amount"`
	PatientAmount       decimal.Decimal `db:"patient_amount" json:"patient_amount"`

	CreatedBy *id.ID `db:"created_by" json:"created_by,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is one product line. Product display fields are copied at sale time
// so the invoice stays stable when the product changes later.
type Item struct {
	ID        id.ID  `db:"id" json:"id"`
	InvoiceID id.ID  `db:"invoice_id" json:"-"`
	LineNo    int    `db:"line_no" json:"line_no"`
	ProductID *id.ID `db:"product_id" json:"product_id,omitempty"`

	ProductCode string  `db:"product_code" json:"product_code"`
	ProductName string  `db:"product_name" json:"product_name"`
	Category    string  `db:"category" json:"category"`
	Batch       *string `db:"batch_number" json:"batch_number,omitempty"`

	Quantity           int64           `db:"quantity" json:"quantity"`
	UnitPrice          decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage" json:"discount_percentage"`
	LineTotal          decimal.Decimal `db:"line_total" json:"line_total"`
	DiscountAmount     decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	NetAmount          decimal.Decimal `db:"net_amount" json:"net_amount"`
}

// Recompute derives LineTotal, DiscountAmount and NetAmount.
func (it *Item) Recompute() {
	it.UnitPrice = types.RoundMoney(it.UnitPrice)
	it.LineTotal = decimal.NewFromInt(it.Quantity).Mul(it.UnitPrice)
	it.DiscountAmount = types.PercentOf(it.LineTotal, it.DiscountPercentage)
	it.NetAmount = it.LineTotal.Sub(it.DiscountAmount)
}

// NewInvoice creates an empty invoice issued at the given time.
func NewInvoice(issuedAt time.Time, method PaymentMethod) *Invoice {
	return &Invoice{
		BaseEntity:          entity.NewBaseEntity(),
		IssuedAt:            issuedAt,
		PaymentMethod:       method,
		PaymentStatus:       StatusPending,
		Subtotal:            decimal.Zero,
		DiscountTotal:       decimal.Zero,
		TaxRate:             decimal.Zero,
		TaxAmount:           decimal.Zero,
		Total:               decimal.Zero,
		PaidAmount:          decimal.Zero,
		DueAmount:           decimal.Zero,
		ChangeAmount:        decimal.Zero,
		InsuranceCoverage:   decimal.Zero,
		ReimbursementAmount: decimal.Zero,
		PatientAmount:       decimal.Zero,
		Items:               []Item{},
	}
}

// AddItem appends a line for p and recalculates it.
func (inv *Invoice) AddItem(p *product.Product, quantity int64, unitPrice, discountPct decimal.Decimal) {
	pid := p.ID
	it := Item{
		ID:                 id.New(),
		InvoiceID:          inv.ID,
		LineNo:             len(inv.Items) + 1,
		ProductID:          &pid,
		ProductCode:        p.Code,
		ProductName:        p.Name,
		Category:           p.Category,
		Batch:              p.Batch,
		Quantity:           quantity,
		UnitPrice:          unitPrice,
		DiscountPercentage: discountPct,
	}
	it.Recompute()
	inv.Items = append(inv.Items, it)
}

// Recalculate derives every amount from the items, the tax rate (percent)
// and the insurance coverage (percent). Payment fields follow the new total.
func (inv *Invoice) Recalculate(taxRate, coverage decimal.Decimal) {
	inv.Subtotal = decimal.Zero
	inv.DiscountTotal = decimal.Zero
	for i := range inv.Items {
		inv.Items[i].Recompute()
		inv.Subtotal = inv.Subtotal.Add(inv.Items[i].NetAmount)
		inv.DiscountTotal = inv.DiscountTotal.Add(inv.Items[i].DiscountAmount)
	}

	inv.TaxRate = taxRate
	inv.TaxAmount = types.PercentOf(inv.Subtotal, taxRate)
	inv.Total = inv.Subtotal.Add(inv.TaxAmount)

	inv.InsuranceCoverage = coverage
	inv.ReimbursementAmount = types.PercentOf(inv.Total, coverage)
	inv.PatientAmount = inv.Total.Sub(inv.ReimbursementAmount)

	inv.SetPaid(inv.PaidAmount.Add(inv.ChangeAmount))
}

// SetPaid records the amount tendered at the counter. Anything above the
// total is returned as change.
func (inv *Invoice) SetPaid(tendered decimal.Decimal) {
	paid := types.RoundMoney(tendered)
	inv.ChangeAmount = decimal.Zero
	if paid.GreaterThan(inv.Total) {
		inv.ChangeAmount = paid.Sub(inv.Total)
		paid = inv.Total
	}
	inv.PaidAmount = paid
	inv.DueAmount = types.MaxZero(inv.Total.Sub(paid))
	inv.PaymentStatus = StatusFor(inv.Total, paid)
}

// ApplyPayment records an additional payment. The status never moves back.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.NewFieldValidation("amount", "amount must be greater than zero")
	}
	if inv.PaymentStatus == StatusPaid {
		return apperror.NewConflict("invoice is already paid").WithDetail("number", inv.Number)
	}
	if amount.GreaterThan(inv.DueAmount) {
		return apperror.NewFieldValidation("amount", "amount exceeds the amount due").
			WithDetail("due_amount", inv.DueAmount.String())
	}
	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.DueAmount = types.MaxZero(inv.Total.Sub(inv.PaidAmount))
	inv.PaymentStatus = StatusFor(inv.Total, inv.PaidAmount)
	inv.Touch()
	return nil
}
