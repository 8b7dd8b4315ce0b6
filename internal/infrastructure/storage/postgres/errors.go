package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"pharmadesk/internal/core/apperror"
)

// PostgreSQL error codes mapped by repositories.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint violation
// and returns the violated constraint name.
func IsUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// ConstraintField derives the column from a "<table>_<column>_key"
// constraint name, e.g. invoices_number_key gives "number".
func ConstraintField(table, constraint string) string {
	field := strings.TrimPrefix(constraint, table+"_")
	field = strings.TrimSuffix(field, "_key")
	field = strings.TrimSuffix(field, "_uniq")
	return field
}

// MapUniqueViolation turns a unique violation on table into a DUPLICATE
// error naming the column. Other errors are returned unchanged.
func MapUniqueViolation(err error, entity, table, value string) error {
	constraint, ok := IsUniqueViolation(err)
	if !ok {
		return err
	}
	return apperror.NewDuplicate(entity, ConstraintField(table, constraint), value).WithCause(err)
}
