package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		token    string
		dialect  Dialect
		dsn      string
		inMemory bool
	}{
		{"empty", "", "", DialectSQLite, ":memory:", true},
		{"memory", ":memory:", "", DialectSQLite, ":memory:", true},
		{"file path", "./data/kv.sqlite", "", DialectSQLite, "./data/kv.sqlite?_journal_mode=WAL&_busy_timeout=5000", false},
		{"file uri with query", "file:kv.db?cache=shared", "", DialectSQLite, "file:kv.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000", false},
		{"file uri triple slash", "file:///tmp/kv.db", "", DialectSQLite, "file:///tmp/kv.db?_journal_mode=WAL&_busy_timeout=5000", false},
		{"postgres", "postgres://u:p@db:5432/kv", "", DialectPostgres, "postgres://u:p@db:5432/kv", false},
		{"postgresql", "postgresql://db/kv", "", DialectPostgres, "postgresql://db/kv", false},
		{"libsql without token", "libsql://kv.turso.io", "", DialectLibSQL, "libsql://kv.turso.io", false},
		{"libsql token appended", "libsql://kv.turso.io", "tok", DialectLibSQL, "libsql://kv.turso.io?authToken=tok", false},
		{"libsql token kept", "https://kv.turso.io?authToken=mine", "tok", DialectLibSQL, "https://kv.turso.io?authToken=mine", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.target, tt.token)
			require.NoError(t, err)
			require.Equal(t, tt.dialect, got.Dialect)
			require.Equal(t, tt.dsn, got.DSN)
			require.Equal(t, tt.inMemory, got.InMemory)
		})
	}
}

func TestParseTarget_UnsupportedScheme(t *testing.T) {
	_, err := ParseTarget("redis://localhost:6379", "")
	require.Error(t, err)
}

func TestTarget_Redacted(t *testing.T) {
	tg, err := ParseTarget("libsql://kv.turso.io", "secret")
	require.NoError(t, err)
	require.NotContains(t, tg.Redacted(), "secret")

	tg, err = ParseTarget("postgres://user:hunter2@db/kv", "")
	require.NoError(t, err)
	require.NotContains(t, tg.Redacted(), "hunter2")
}

func TestDialect_Placeholder(t *testing.T) {
	require.Equal(t, "?", DialectSQLite.Placeholder(3))
	require.Equal(t, "?", DialectLibSQL.Placeholder(1))
	require.Equal(t, "$3", DialectPostgres.Placeholder(3))
	require.Equal(t, "BIGINT", DialectPostgres.ExpirationType())
	require.Equal(t, "INTEGER", DialectSQLite.ExpirationType())
}
