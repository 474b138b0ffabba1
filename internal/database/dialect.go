package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Dialect captures the few places where MySQL (production) and SQLite
// (tests, local runs) need different SQL.
type Dialect int

const (
	MySQL Dialect = iota
	SQLite
)

// ForUpdate returns the row-lock suffix for SELECTs issued inside a
// read-then-write transaction.  SQLite serializes writers on the database
// file, so it needs none.
func (d Dialect) ForUpdate() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// Lower wraps expr in the dialect's case-folding function.  MySQL's LOWER
// folds Unicode under the utf8mb4 collation; SQLite uses unicode_lower.
func (d Dialect) Lower(expr string) string {
	if d == MySQL {
		return "LOWER(" + expr + ")"
	}
	return sqliteLower + "(" + expr + ")"
}

// IsDuplicate reports whether err is a unique-constraint violation.
func (d Dialect) IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "1062")
}

func (d Dialect) String() string {
	if d == MySQL {
		return "mysql"
	}
	return "sqlite"
}
