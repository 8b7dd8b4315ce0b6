package dto

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/documents/invoice"
)

// SaleItemRequest is one line of POST /invoices.
type SaleItemRequest struct {
	ProductID          string           `json:"product_id"`
	Quantity           int64            `json:"quantity"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	Items                       []SaleItemRequest `json:"items"`
	PaymentMethod               string            `json:"payment_method"`
	PaidAmount                  *decimal.Decimal  `json:"paid_amount"`
	CustomerName                string            `json:"customer_name"`
	CustomerPhone               string            `json:"customer_phone"`
	PrescriptionRef             string            `json:"prescription_ref"`
	InsuranceCoveragePercentage *decimal.Decimal  `json:"insurance_coverage_percentage"`
	Notes                       string            `json:"notes"`
}

// ToSaleRequest converts to the domain request. Malformed product ids are
// reported here; the remaining field rules live in SaleRequest.Validate.
func (r *CreateInvoiceRequest) ToSaleRequest() (invoice.SaleRequest, error) {
	req := invoice.SaleRequest{
		Items:             make([]invoice.SaleLine, len(r.Items)),
		PaymentMethod:     invoice.PaymentMethod(strings.ToLower(r.PaymentMethod)),
		PaidAmount:        r.PaidAmount,
		CustomerName:      r.CustomerName,
		CustomerPhone:     r.CustomerPhone,
		PrescriptionRef:   r.PrescriptionRef,
		InsuranceCoverage: r.InsuranceCoveragePercentage,
		Notes:             r.Notes,
	}

	verr := apperror.NewValidation("invalid sale request")
	invalid := false
	for i, it := range r.Items {
		var productID id.ID
		if s := strings.TrimSpace(it.ProductID); s != "" {
			parsed, err := id.Parse(s)
			if err != nil {
				verr.WithDetail(fmt.Sprintf("items[%d].product_id", i), "product_id must be a valid UUID")
				invalid = true
			}
			productID = parsed
		}
		req.Items[i] = invoice.SaleLine{
			ProductID:          productID,
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice,
			DiscountPercentage: it.DiscountPercentage,
		}
	}
	if invalid {
		return req, verr
	}
	return req, nil
}

// CreateInvoiceResponse is the data of a created sale. PDFURL stays null
// until a receipt renderer exists.
type CreateInvoiceResponse struct {
	Invoice *invoice.Invoice `json:"invoice"`
	PDFURL  *string          `json:"pdf_url"`
}

// PaymentRequest is the body of POST /invoices/:id/payments.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// InvoiceQuery for GET /invoices and the export.
type InvoiceQuery struct {
	PageQuery
	Status        string `form:"status"`
	PaymentMethod string `form:"payment_method"`
	DateFrom      string `form:"date_from"`
	DateTo        string `form:"date_to"`
}

// ToFilter converts to the domain filter.
func (q InvoiceQuery) ToFilter() (invoice.ListFilter, error) {
	f := invoice.ListFilter{ListFilter: q.ToListFilter()}

	if q.Status != "" {
		st := invoice.PaymentStatus(strings.ToLower(q.Status))
		if !st.Valid() {
			return f, apperror.NewFieldValidation("status", "status must be one of pending, partial, paid")
		}
		f.Status = &st
	}
	if q.PaymentMethod != "" {
		m := invoice.PaymentMethod(strings.ToLower(q.PaymentMethod))
		if !m.Valid() {
			return f, apperror.NewFieldValidation("payment_method", "unknown payment_method")
		}
		f.Method = &m
	}

	var err error
	if f.DateFrom, err = ParseDate("date_from", q.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = ParseDate("date_to", q.DateTo); err != nil {
		return f, err
	}
	return f, nil
}
