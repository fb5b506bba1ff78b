// Package sqlxrepos implements the repositories over postgres, with sqlx & squirrel.
package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// psql builds postgres flavored queries.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// isUniqueViolation works with both drivers: lib/pq & pgx.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}
