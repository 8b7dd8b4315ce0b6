package memory

import (
	"context"
	"sort"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/registers/stock"
)

// MovementRepo implements stock.Repository.
type MovementRepo struct{ s *Store }

var _ stock.Repository = (*MovementRepo)(nil)

func (r *MovementRepo) Append(ctx context.Context, m *stock.Movement) error {
	return r.s.do(ctx, OpMovementAppend, func(st *state) error {
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (r *MovementRepo) Totals(ctx context.Context, productID id.ID) (stock.Totals, error) {
	var t stock.Totals
	err := r.s.do(ctx, "", func(st *state) error {
		for _, m := range st.movements {
			if m.ProductID == productID {
				t.Add(m)
			}
		}
		return nil
	})
	return t, err
}

func (r *MovementRepo) TotalsByProduct(ctx context.Context, productIDs []id.ID) (map[id.ID]stock.Totals, error) {
	out := map[id.ID]stock.Totals{}
	var want map[id.ID]bool
	if len(productIDs) > 0 {
		want = make(map[id.ID]bool, len(productIDs))
		for _, pid := range productIDs {
			want[pid] = true
		}
	}
	err := r.s.do(ctx, "", func(st *state) error {
		for _, m := range st.movements {
			if want != nil && !want[m.ProductID] {
				continue
			}
			t := out[m.ProductID]
			t.Add(m)
			out[m.ProductID] = t
		}
		return nil
	})
	return out, err
}

func (r *MovementRepo) List(ctx context.Context, f stock.MovementFilter) (domain.ListResult[stock.Movement], error) {
	limit, offset := domain.ListFilter{Limit: f.Limit, Offset: f.Offset}.Page()
	res := domain.ListResult[stock.Movement]{Items: []stock.Movement{}, Limit: limit, Offset: offset}

	err := r.s.do(ctx, "", func(st *state) error {
		var matched []stock.Movement
		for _, m := range st.movements {
			switch {
			case f.ProductID != nil && m.ProductID != *f.ProductID:
				continue
			case f.Type != nil && m.Type != *f.Type:
				continue
			case f.Reference != "" && (m.Reference == nil || *m.Reference != f.Reference):
				continue
			case f.DateFrom != nil && m.CreatedAt.Before(*f.DateFrom):
				continue
			case f.DateTo != nil && !m.CreatedAt.Before(*f.DateTo):
				continue
			}
			matched = append(matched, m)
		}
		// newest first, later appends win ties
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

		res.TotalCount = int64(len(matched))
		res.Items = append(res.Items, window(matched, limit, offset)...)
		return nil
	})
	return res, err
}
