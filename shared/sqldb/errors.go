package sqldb

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Hint returns a short operator-facing explanation for well-known server
// error codes, or "" when the error carries none.
func Hint(err error) string {
	switch errorCode(err) {
	case pgerrcode.InvalidPassword, pgerrcode.InvalidAuthorizationSpecification:
		return "authentication failed: check user and password"
	case pgerrcode.InvalidCatalogName:
		return "the database does not exist on this server"
	case pgerrcode.TooManyConnections:
		return "the server refused the connection: too many connections"
	case pgerrcode.InsufficientPrivilege:
		return "the user lacks privileges on the jobs tables"
	case pgerrcode.UndefinedTable:
		return "the jobs tables were not found in this database"
	}
	return ""
}

func errorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	return ""
}
