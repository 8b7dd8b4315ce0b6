package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/infrastructure/http/v1/dto"
	"pharmadesk/internal/infrastructure/spreadsheet"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// InvoiceHandler handles sales and invoices.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	sale, err := req.ToSaleRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	inv, err := h.service.CreateSale(c.Request.Context(), sale)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, "invoice created", dto.CreateInvoiceResponse{Invoice: inv})
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	page, stats, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.WithStats(c, page, stats)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Get(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// RecordPayment handles POST /invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	invoiceID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := h.service.RecordPayment(c.Request.Context(), invoiceID, req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "payment recorded", inv)
}

// Export handles GET /invoices/export
func (h *InvoiceHandler) Export(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	invoices, stats, err := h.service.ForExport(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := spreadsheet.WriteInvoices(&buf, invoices, stats); err != nil {
		h.Error(c, err)
		return
	}

	name := fmt.Sprintf("invoices-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, XlsxContentType, buf.Bytes())
}

func (h *InvoiceHandler) filter(c *gin.Context) (invoice.ListFilter, bool) {
	var q dto.InvoiceQuery
	if !h.BindQuery(c, &q) {
		return invoice.ListFilter{}, false
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return invoice.ListFilter{}, false
	}
	return filter, true
}
