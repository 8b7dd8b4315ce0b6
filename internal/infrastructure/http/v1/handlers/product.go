package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/registers/stock"
	"pharmadesk/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles the product catalog.
type ProductHandler struct {
	*BaseHandler
	products *product.Service
	stock    *stock.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, products *product.Service, stockSvc *stock.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, products: products, stock: stockSvc}
}

// List handles GET /products. Every item carries its stock level.
func (h *ProductHandler) List(c *gin.Context) {
	var q dto.ProductQuery
	if !h.BindQuery(c, &q) {
		return
	}
	ctx := c.Request.Context()

	page, err := h.products.List(ctx, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	levels, err := h.stock.Levels(ctx, page.Items)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ProductResponse, len(page.Items))
	for i, p := range page.Items {
		items[i] = dto.ProductResponse{Product: p, Stock: levels[p.ID]}
	}
	h.OK(c, gin.H{
		"items":       items,
		"total_count": page.TotalCount,
		"limit":       page.Limit,
		"offset":      page.Offset,
	})
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	p, lvl, err := h.stock.LevelOf(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ProductResponse{Product: p, Stock: lvl})
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.ProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := req.ToProduct()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.products.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, "product created", p)
}

// Update handles PUT /products/:id. The body must carry the version read
// by the client.
func (h *ProductHandler) Update(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Version < 1 {
		h.Error(c, apperror.NewFieldValidation("version", "version is required"))
		return
	}
	ctx := c.Request.Context()

	p, err := h.products.GetByID(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.ApplyTo(p); err != nil {
		h.Error(c, err)
		return
	}
	if code := strings.TrimSpace(req.Code); code != "" {
		p.Code = code
	}
	p.Version = req.Version

	if err := h.products.Update(ctx, p); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "product updated", p)
}

// Delete handles DELETE /products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.products.Delete(c.Request.Context(), productID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "product deleted", nil)
}
