package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/catalogs/product"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		total, paid string
		want        PaymentStatus
	}{
		{"100.00", "0", StatusPending},
		{"100.00", "0.01", StatusPartial},
		{"100.00", "99.99", StatusPartial},
		{"100.00", "100.00", StatusPaid},
		{"0", "0", StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.total+"/"+tt.paid, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(dec(tt.total), dec(tt.paid)))
		})
	}
}

func TestRecalculate_Amounts(t *testing.T) {
	a := product.NewProduct("A", "Amoxicillin 1g")
	b := product.NewProduct("B", "Bandage")

	inv := NewInvoice(time.Now(), PaymentInsurance)
	inv.AddItem(a, 3, dec("100"), dec("10"))
	inv.AddItem(b, 2, dec("45.5"), decimal.Zero)
	inv.Recalculate(dec("14"), dec("80"))
	inv.SetPaid(dec("50"))

	require.Len(t, inv.Items, 2)
	first := inv.Items[0]
	assert.True(t, dec("300").Equal(first.LineTotal))
	assert.True(t, dec("30").Equal(first.DiscountAmount))
	assert.True(t, dec("270").Equal(first.NetAmount))
	assert.Equal(t, 2, inv.Items[1].LineNo)

	assert.Equal(t, "361", inv.Subtotal.String())
	assert.Equal(t, "50.54", inv.TaxAmount.String())
	assert.Equal(t, "411.54", inv.Total.String())
	assert.Equal(t, "329.23", inv.ReimbursementAmount.String())
	assert.Equal(t, "82.31", inv.PatientAmount.String())
	assert.Equal(t, "361.54", inv.DueAmount.String())
	assert.Equal(t, StatusPartial, inv.PaymentStatus)

	for _, it := range inv.Items {
		want := decimal.NewFromInt(it.Quantity).Mul(it.UnitPrice).Sub(it.DiscountAmount)
		assert.True(t, want.Equal(it.NetAmount))
	}
	assert.True(t, inv.Total.Equal(inv.Subtotal.Add(inv.TaxAmount)))
}

func TestSetPaid_ReturnsChange(t *testing.T) {
	inv := NewInvoice(time.Now(), PaymentCash)
	inv.AddItem(product.NewProduct("A", "A"), 1, dec("95"), decimal.Zero)
	inv.Recalculate(decimal.Zero, decimal.Zero)
	inv.SetPaid(dec("100"))

	assert.Equal(t, "95", inv.PaidAmount.String())
	assert.Equal(t, "5", inv.ChangeAmount.String())
	assert.True(t, inv.DueAmount.IsZero())
	assert.Equal(t, StatusPaid, inv.PaymentStatus)
}

func TestApplyPayment(t *testing.T) {
	inv := NewInvoice(time.Now(), PaymentCredit)
	inv.AddItem(product.NewProduct("A", "A"), 1, dec("100"), decimal.Zero)
	inv.Recalculate(decimal.Zero, decimal.Zero)
	inv.SetPaid(decimal.Zero)
	require.Equal(t, StatusPending, inv.PaymentStatus)

	err := inv.ApplyPayment(dec("150"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	require.NoError(t, inv.ApplyPayment(dec("40")))
	assert.Equal(t, StatusPartial, inv.PaymentStatus)
	assert.Equal(t, "60", inv.DueAmount.String())

	require.NoError(t, inv.ApplyPayment(dec("60")))
	assert.Equal(t, StatusPaid, inv.PaymentStatus)

	err = inv.ApplyPayment(dec("1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestSaleRequest_Validate(t *testing.T) {
	neg := dec("-1")
	over := dec("101")

	req := SaleRequest{
		Items: []SaleLine{
			{Quantity: 0},
			{Quantity: 1, UnitPrice: &neg, DiscountPercentage: &over},
		},
		PaymentMethod: "cheque",
		PaidAmount:    &neg,
	}
	err := req.Validate()
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	for _, field := range []string{
		"items[0].product_id",
		"items[0].quantity",
		"items[1].unit_price",
		"items[1].discount_percentage",
		"payment_method",
		"paid_amount",
	} {
		assert.Contains(t, appErr.Details, field)
	}

	empty := SaleRequest{PaymentMethod: PaymentCash}
	err = empty.Validate()
	appErr, _ = apperror.AsAppError(err)
	assert.Contains(t, appErr.Details, "items")
}
