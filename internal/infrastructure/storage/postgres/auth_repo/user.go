// Package auth_repo provides PostgreSQL implementations for auth repositories.
package auth_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const usersTable = "users"

var userColumns = postgres.ExtractDBColumns[auth.User]()

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ auth.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q := r.txm.GetQuerier(ctx)

	query := `
		INSERT INTO users (
			id, username, full_name, password_hash, role, is_active,
			failed_login_attempts, deletion_mark, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := q.Exec(ctx, query,
		user.ID, user.Username, user.FullName, user.PasswordHash, user.Role, user.IsActive,
		user.FailedLoginAttempts, user.DeletionMark, user.Version, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if mapped := postgres.MapUniqueViolation(err, "user", usersTable, user.Username); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *UserRepo) getBy(ctx context.Context, column string, value any, key string) (*auth.User, error) {
	sql, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{column: value, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user auth.User
	err = pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &user, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetByID retrieves user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getBy(ctx, "id", userID, userID.String())
}

// GetByUsername retrieves user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getBy(ctx, "username", username, username)
}

// Update stores the mutable fields under optimistic locking.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	q := r.txm.GetQuerier(ctx)

	query := `
		UPDATE users SET
			full_name = $2,
			role = $3,
			is_active = $4,
			last_login_at = $5,
			failed_login_attempts = $6,
			locked_until = $7,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND deletion_mark = FALSE AND version = $8
		RETURNING version, updated_at
	`

	err := q.QueryRow(ctx, query,
		user.ID, user.FullName, user.Role, user.IsActive, user.LastLoginAt,
		user.FailedLoginAttempts, user.LockedUntil, user.Version,
	).Scan(&user.Version, &user.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperror.NewConcurrentModification("user", user.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// List lists users ordered by username.
func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) (domain.ListResult[*auth.User], error) {
	limit, offset := filter.Page()
	result := domain.ListResult[*auth.User]{Items: []*auth.User{}, Limit: limit, Offset: offset}

	cond := squirrel.And{}
	if !filter.IncludeDeleted {
		cond = append(cond, squirrel.Eq{"deletion_mark": false})
	}
	if filter.Role != "" {
		cond = append(cond, squirrel.Eq{"role": filter.Role})
	}
	if filter.IsActive != nil {
		cond = append(cond, squirrel.Eq{"is_active": *filter.IsActive})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := postgres.ContainsPattern(search)
		cond = append(cond, squirrel.Or{
			squirrel.ILike{"username": pattern},
			squirrel.ILike{"full_name": pattern},
		})
	}

	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(usersTable).Where(cond).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count users: %w", err)
	}

	sql, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(cond).
		OrderBy("username").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list users: %w", err)
	}
	return result, nil
}
