package db

import (
	"fmt"
	"net/url"
	"strings"
)

const memoryTarget = ":memory:"

// Target is a parsed connection target.
type Target struct {
	Dialect  Dialect
	DSN      string
	InMemory bool
}

// ParseTarget resolves a connection target into a dialect and driver DSN.
//
// Accepted forms:
//   - "" or ":memory:"                   private in-memory SQLite
//   - a path, file: or file:/// URI      SQLite file (WAL journal)
//   - postgres:// or postgresql://       PostgreSQL via pgx
//   - libsql://, http(s)://, ws(s)://    remote libSQL, authToken optional
func ParseTarget(target, authToken string) (Target, error) {
	target = strings.TrimSpace(target)

	if target == "" || target == memoryTarget || strings.HasPrefix(target, "file::memory:") {
		if target == "" {
			target = memoryTarget
		}
		return Target{Dialect: DialectSQLite, DSN: target, InMemory: true}, nil
	}

	scheme, _, hasScheme := strings.Cut(target, "://")
	if !hasScheme {
		return Target{Dialect: DialectSQLite, DSN: sqliteDSN(target)}, nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		return Target{Dialect: DialectSQLite, DSN: sqliteDSN(target)}, nil
	case "postgres", "postgresql":
		return Target{Dialect: DialectPostgres, DSN: target}, nil
	case "libsql", "http", "https", "ws", "wss":
		dsn, err := withAuthToken(target, authToken)
		if err != nil {
			return Target{}, err
		}
		return Target{Dialect: DialectLibSQL, DSN: dsn}, nil
	default:
		return Target{}, fmt.Errorf("unsupported target scheme %q", scheme)
	}
}

// Redacted returns the DSN with credentials masked, for logging.
func (t Target) Redacted() string {
	if t.Dialect == DialectSQLite {
		return t.DSN
	}
	u, err := url.Parse(t.DSN)
	if err != nil {
		return "<unparseable>"
	}
	q := u.Query()
	if q.Has("authToken") {
		q.Set("authToken", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL&_busy_timeout=5000"
}

func withAuthToken(target, token string) (string, error) {
	if token == "" {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URI: %w", err)
	}
	q := u.Query()
	if q.Get("authToken") != "" {
		return target, nil
	}
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
