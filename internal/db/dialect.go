package db

import (
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Dialect identifies the SQL flavour spoken by the backing database.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
	DialectLibSQL
)

// String returns the dialect name used in logs.
func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectLibSQL:
		return "libsql"
	default:
		return "sqlite"
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectLibSQL:
		return "libsql"
	default:
		return "sqlite3"
	}
}

// ExpirationType returns the column type for epoch-millisecond expirations.
// Postgres INTEGER is 32-bit, so it needs BIGINT.
func (d Dialect) ExpirationType() string {
	if d == DialectPostgres {
		return "BIGINT"
	}
	return "INTEGER"
}

// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
