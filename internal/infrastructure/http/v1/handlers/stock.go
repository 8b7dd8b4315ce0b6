package handlers

import (
	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/security"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/http/v1/dto"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
	"pharmadesk/internal/infrastructure/spreadsheet"
)

// maxImportBytes bounds an uploaded workbook.
const maxImportBytes = 5 << 20

// StockHandler handles the movement ledger and stock levels.
type StockHandler struct {
	*BaseHandler
	service  *stock.Service
	products *product.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, products *product.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service, products: products}
}

// CreateMovement handles POST /stock/movements
func (h *StockHandler) CreateMovement(c *gin.Context) {
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	typ, change, err := req.ToChange()
	if err != nil {
		h.Error(c, err)
		return
	}
	if typ == stock.MovementAdjustment && !middleware.HasPermission(c, security.PermStockAdjust) {
		h.Error(c, apperror.NewForbidden("insufficient permissions").
			WithDetail("required_permission", string(security.PermStockAdjust)))
		return
	}

	res, err := h.service.Apply(c.Request.Context(), typ, change)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, "stock updated", res)
}

// ListMovements handles GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.service.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Level handles GET /stock/levels/:product_id
func (h *StockHandler) Level(c *gin.Context) {
	productID, ok := h.ParamID(c, "product_id")
	if !ok {
		return
	}
	_, lvl, err := h.service.LevelOf(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, lvl)
}

// Dashboard handles GET /stock/dashboard
func (h *StockHandler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Bulk handles POST /stock/bulk
func (h *StockHandler) Bulk(c *gin.Context) {
	var req dto.BulkRequest
	if !h.BindJSON(c, &req) {
		return
	}
	mode, items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.applyBulk(c, mode, items)
}

// Import handles POST /stock/import (multipart "file", query "mode").
func (h *StockHandler) Import(c *gin.Context) {
	mode := stock.BulkMode(c.DefaultQuery("mode", string(stock.BulkAllOrNothing)))
	if !mode.Valid() {
		h.Error(c, apperror.NewFieldValidation("mode", "mode must be all_or_nothing or best_effort"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.Error(c, apperror.NewBadRequest("multipart field file is required").WithCause(err))
		return
	}
	if header.Size > maxImportBytes {
		h.Error(c, apperror.NewBadRequest("file is too large").WithDetail("max_bytes", maxImportBytes))
		return
	}
	f, err := header.Open()
	if err != nil {
		h.Error(c, apperror.NewBadRequest("cannot read uploaded file").WithCause(err))
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	rows, err := spreadsheet.ReadStockImport(f)
	if err != nil {
		h.Error(c, err)
		return
	}
	items, err := spreadsheet.ResolveImport(ctx, rows, h.products.GetByCode)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.applyBulk(c, mode, items)
}

func (h *StockHandler) applyBulk(c *gin.Context, mode stock.BulkMode, items []stock.BulkItem) {
	for _, it := range items {
		if it.Type == stock.MovementAdjustment && !middleware.HasPermission(c, security.PermStockAdjust) {
			h.Error(c, apperror.NewForbidden("insufficient permissions").
				WithDetail("required_permission", string(security.PermStockAdjust)))
			return
		}
	}

	report, err := h.service.Bulk(c.Request.Context(), mode, items)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Reconcile handles POST /stock/reconcile
func (h *StockHandler) Reconcile(c *gin.Context) {
	drifts, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "reconciliation complete", gin.H{"drifted": len(drifts), "products": drifts})
}
