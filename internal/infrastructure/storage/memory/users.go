package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/auth"
)

// UserRepo implements auth.UserRepository.
type UserRepo struct{ s *Store }

var _ auth.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *auth.User) error {
	return r.s.do(ctx, OpUserCreate, func(st *state) error {
		for _, existing := range st.users {
			if existing.Username == u.Username {
				return apperror.NewDuplicate("user", "username", u.Username)
			}
		}
		c := *u
		st.users[u.ID] = &c
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	var out *auth.User
	err := r.s.do(ctx, "", func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return apperror.NewNotFound("user", userID.String())
		}
		c := *u
		out = &c
		return nil
	})
	return out, err
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	var out *auth.User
	err := r.s.do(ctx, "", func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				c := *u
				out = &c
				return nil
			}
		}
		return apperror.NewNotFound("user", username)
	})
	return out, err
}

func (r *UserRepo) Update(ctx context.Context, u *auth.User) error {
	return r.s.do(ctx, "", func(st *state) error {
		cur, ok := st.users[u.ID]
		if !ok {
			return apperror.NewNotFound("user", u.ID.String())
		}
		if cur.Version != u.Version {
			return apperror.NewConcurrentModification("user", u.ID.String())
		}
		u.Version++
		u.UpdatedAt = time.Now().UTC()
		c := *u
		st.users[u.ID] = &c
		return nil
	})
}

func (r *UserRepo) List(ctx context.Context, f auth.UserFilter) (domain.ListResult[*auth.User], error) {
	limit, offset := f.Page()
	res := domain.ListResult[*auth.User]{Items: []*auth.User{}, Limit: limit, Offset: offset}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	err := r.s.do(ctx, "", func(st *state) error {
		var matched []*auth.User
		for _, u := range st.users {
			switch {
			case u.DeletionMark && !f.IncludeDeleted:
				continue
			case f.Role != "" && u.Role != f.Role:
				continue
			case f.IsActive != nil && u.IsActive != *f.IsActive:
				continue
			case search != "" &&
				!strings.Contains(u.Username, search) &&
				!strings.Contains(strings.ToLower(u.FullName), search):
				continue
			}
			matched = append(matched, u)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })

		res.TotalCount = int64(len(matched))
		for _, u := range window(matched, limit, offset) {
			c := *u
			res.Items = append(res.Items, &c)
		}
		return nil
	})
	return res, err
}
