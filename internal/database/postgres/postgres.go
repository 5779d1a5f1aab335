package postgres

import (
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolationErrCode = "23505"

// isUniqueViolationError reports whether the error is a Postgres unique
// constraint violation. The urls table carries a unique index on the alias
// column, so a violation on insert means the alias is already taken.
func isUniqueViolationError(err error) bool {
	pgErr, ok := err.(*pgconn.PgError)
	return ok && pgErr.SQLState() == uniqueViolationErrCode
}
