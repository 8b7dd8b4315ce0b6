package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalogs/product"
)

// ProductRepo implements product.Repository.
type ProductRepo struct{ s *Store }

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.s.do(ctx, OpProductCreate, func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return apperror.NewDuplicate("product", "id", p.ID.String())
		}
		if codeTaken(st, p.Code, p.ID) {
			return apperror.NewDuplicate("product", "code", p.Code)
		}
		st.products[p.ID] = copyProduct(p)
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, "", func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		out = copyProduct(p)
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, "", func(st *state) error {
		for _, p := range st.products {
			if p.Code == code && !p.DeletionMark {
				out = copyProduct(p)
				return nil
			}
		}
		return apperror.NewNotFound("product", code)
	})
	return out, err
}

// GetForUpdate relies on transactions being serialized.
func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.GetByID(ctx, productID)
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.s.do(ctx, OpProductUpdate, func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok {
			return apperror.NewNotFound("product", p.ID.String())
		}
		if cur.Version != p.Version {
			return apperror.NewConcurrentModification("product", p.ID.String())
		}
		if codeTaken(st, p.Code, p.ID) {
			return apperror.NewDuplicate("product", "code", p.Code)
		}
		next := copyProduct(p)
		next.InitialStock = cur.InitialStock
		next.CachedStock = cur.CachedStock
		next.CreatedAt = cur.CreatedAt
		next.DeletionMark = cur.DeletionMark
		next.Version = cur.Version + 1
		next.UpdatedAt = time.Now().UTC()
		st.products[p.ID] = next

		p.Version = next.Version
		p.UpdatedAt = next.UpdatedAt
		p.InitialStock = next.InitialStock
		return nil
	})
}

func (r *ProductRepo) SetDeletionMark(ctx context.Context, productID id.ID, marked bool) error {
	return r.s.do(ctx, "", func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		p.DeletionMark = marked
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *ProductRepo) SetCachedStock(ctx context.Context, productID id.ID, qty int64) error {
	return r.s.do(ctx, OpCachedStockSave, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		p.CachedStock = qty
		return nil
	})
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	limit, offset := filter.Page()
	res := domain.ListResult[*product.Product]{Items: []*product.Product{}, Limit: limit, Offset: offset}

	var ids map[id.ID]bool
	if len(filter.IDs) > 0 {
		ids = make(map[id.ID]bool, len(filter.IDs))
		for _, pid := range filter.IDs {
			ids[pid] = true
		}
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	err := r.s.do(ctx, "", func(st *state) error {
		var matched []*product.Product
		for _, p := range st.products {
			if p.DeletionMark && !filter.IncludeDeleted {
				continue
			}
			if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
				continue
			}
			if ids != nil && !ids[p.ID] {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(p.Name), search) &&
				!strings.Contains(strings.ToLower(p.Code), search) {
				continue
			}
			matched = append(matched, p)
		}
		sortProducts(matched)

		res.TotalCount = int64(len(matched))
		for _, p := range window(matched, limit, offset) {
			res.Items = append(res.Items, copyProduct(p))
		}
		return nil
	})
	return res, err
}

func (r *ProductRepo) ListActive(ctx context.Context) ([]*product.Product, error) {
	out := []*product.Product{}
	err := r.s.do(ctx, "", func(st *state) error {
		for _, p := range st.products {
			if !p.DeletionMark {
				out = append(out, copyProduct(p))
			}
		}
		sortProducts(out)
		return nil
	})
	return out, err
}

func codeTaken(st *state, code string, self id.ID) bool {
	for _, p := range st.products {
		if p.Code == code && p.ID != self {
			return true
		}
	}
	return false
}

func sortProducts(ps []*product.Product) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].Code < ps[j].Code
	})
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
