// Package db opens the backing SQL database for kyval and bootstraps the key-value table.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
)

// DefaultTable is the table used when Options.TableName is empty.
const DefaultTable = "kv_store"

var (
	// ErrConnection is returned when the target cannot be opened or reached.
	ErrConnection = errors.New("connection error")
	// ErrSchema is returned when the key-value table cannot be created.
	ErrSchema = errors.New("schema error")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures Open.
type Options struct {
	// Target is ":memory:", a SQLite file path, a postgres:// URI or a libsql:// URI.
	Target string
	// TableName is interpolated into SQL as-is and must be a trusted identifier.
	TableName string
	// AuthToken is appended to remote libSQL targets that do not carry one.
	AuthToken string
}

// GetTableName returns the table name with default
func (o Options) GetTableName() string {
	if o.TableName == "" {
		return DefaultTable
	}
	return o.TableName
}

// DB wraps the database connection together with the table it serves.
type DB struct {
	*sql.DB
	table   string
	dialect Dialect
}

// Open connects to the target and makes sure the key-value table exists.
func Open(ctx context.Context, opts Options) (*DB, error) {
	table := opts.GetTableName()
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrSchema, table)
	}

	t, err := ParseTarget(opts.Target, opts.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	sqlDB, err := sql.Open(t.Dialect.DriverName(), t.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrConnection, err)
	}
	if t.InMemory {
		// Every new connection to ":memory:" is a fresh, empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to reach database: %w", ErrConnection, err)
	}

	d := &DB{DB: sqlDB, table: table, dialect: t.Dialect}
	if err := d.initSchema(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", ErrSchema, err)
	}

	log.Debug().
		Str("dialect", t.Dialect.String()).
		Str("target", t.Redacted()).
		Str("table", table).
		Msg("Opened key-value database")

	return d, nil
}

// initSchema creates the key-value table if it does not exist yet
func (db *DB) initSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expiration %s
		)
	`, db.table, db.dialect.ExpirationType()))
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", db.table, err)
	}
	return nil
}

// Table returns the key-value table name.
func (db *DB) Table() string {
	return db.table
}

// Dialect returns the SQL dialect of the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
