package dto

import (
	"fmt"
	"strings"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/registers/stock"
)

// MovementRequest is the body of POST /stock/movements.
type MovementRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Type      string `json:"type" binding:"required"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// ToChange converts to the mutation input.
func (r *MovementRequest) ToChange() (stock.MovementType, stock.Change, error) {
	productID, err := ParseID("product_id", r.ProductID)
	if err != nil {
		return "", stock.Change{}, err
	}
	return stock.MovementType(strings.ToLower(r.Type)), stock.Change{
		ProductID: productID,
		Quantity:  r.Quantity,
		Reason:    r.Reason,
		Reference: r.Reference,
	}, nil
}

// BulkItemRequest is one line of a bulk update.
type BulkItemRequest struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// BulkRequest is the body of POST /stock/bulk.
type BulkRequest struct {
	Mode  string            `json:"mode" binding:"required"`
	Items []BulkItemRequest `json:"items"`
}

// ToItems parses every line, reporting bad ids as items[i].product_id.
func (r *BulkRequest) ToItems() (stock.BulkMode, []stock.BulkItem, error) {
	verr := apperror.NewValidation("invalid bulk request")
	invalid := false

	items := make([]stock.BulkItem, len(r.Items))
	for i, it := range r.Items {
		productID, err := id.Parse(strings.TrimSpace(it.ProductID))
		if err != nil {
			verr.WithDetail(fmt.Sprintf("items[%d].product_id", i), "product_id must be a valid UUID")
			invalid = true
		}
		items[i] = stock.BulkItem{
			ProductID: productID,
			Type:      stock.MovementType(strings.ToLower(it.Type)),
			Quantity:  it.Quantity,
			Reason:    it.Reason,
			Reference: it.Reference,
		}
	}
	if invalid {
		return "", nil, verr
	}
	return stock.BulkMode(strings.ToLower(r.Mode)), items, nil
}

// MovementQuery for GET /stock/movements.
type MovementQuery struct {
	ProductID string `form:"product_id"`
	Type      string `form:"type"`
	Reference string `form:"reference"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset    int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts to the ledger filter.
func (q MovementQuery) ToFilter() (stock.MovementFilter, error) {
	f := stock.MovementFilter{Reference: strings.TrimSpace(q.Reference), Limit: q.Limit, Offset: q.Offset}

	if q.ProductID != "" {
		productID, err := ParseID("product_id", q.ProductID)
		if err != nil {
			return f, err
		}
		f.ProductID = &productID
	}
	if q.Type != "" {
		t := stock.MovementType(strings.ToLower(q.Type))
		if !t.Valid() {
			return f, apperror.NewFieldValidation("type", "type must be one of in, out, adjustment")
		}
		f.Type = &t
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
