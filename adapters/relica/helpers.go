package relica

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/coregx/notify"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// defaultPrefix is the prefix of every table owned by this module.
const defaultPrefix = "notify_"

// countRow receives a COUNT(*) AS n result. Relica scans rows into structs only.
type countRow struct {
	N int64 `db:"n"`
}

// placeholders returns "?, ?, ?" for n arguments together with the
// arguments converted for a variadic Where call.
func placeholders(values []string) (string, []interface{}) {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}

// quoteIdent quotes a column name that collides with an SQL keyword.
func quoteIdent(driverName, name string) string {
	if driverName == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// loadErr maps a single-row lookup error onto the library's error values.
func loadErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notify.ErrNoData
	}
	return notify.NewErrorWithCause(notify.ErrCodeDatabase, message, err)
}

// rowsChanged reports whether a conditional write touched a row.
func rowsChanged(res sql.Result) (bool, error) {
	if res == nil {
		return false, nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// isUniqueViolation reports whether err is a unique constraint failure
// raised by one of the supported drivers.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// insertErr maps an insert failure, reporting duplicates as conflicts.
func insertErr(err error, message string) error {
	if isUniqueViolation(err) {
		return notify.NewErrorWithCause(notify.ErrCodeConflict, message, err)
	}
	return notify.NewErrorWithCause(notify.ErrCodeDatabase, message, err)
}
