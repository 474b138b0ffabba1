package database

import (
	"database/sql"
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// sqliteLower is a Unicode-aware replacement for SQLite's LOWER, which
// folds ASCII letters only.
const sqliteLower = "unicode_lower"

func init() {
	// Registered functions are attached to every new connection.
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLower, 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			}
			return args[0], nil
		})
}

// OpenSQLite opens a SQLite database at path (":memory:" for an in-process
// database).  Used for local runs and tests.  The pool is pinned to one
// connection: every connection to ":memory:" would otherwise see its own
// empty database, and SQLite allows only one writer anyway.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
