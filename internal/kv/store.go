// Package kv provides a key-value store over a single SQL table.
//
// Values are stored as JSON text next to an optional expiration in epoch
// milliseconds. Expired rows are filtered out lazily when read.
package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/kyval/internal/db"
)

// Entry is a live key-value pair.
type Entry struct {
	Key       string
	Value     any
	ExpiresAt time.Time // Zero value means no expiry
}

// IsExpired reports whether the entry expired at the given instant.
func (e *Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !e.ExpiresAt.After(now)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expirations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithPurgeOnRead makes Get delete expired rows it encounters.
func WithPurgeOnRead(purge bool) Option {
	return func(s *Store) {
		s.purgeOnRead = purge
	}
}

// Store is the key-value facade over a table opened by db.Open.
// It holds no state besides the shared connection and is safe for concurrent use.
type Store struct {
	db          *db.DB
	now         func() time.Time
	purgeOnRead bool

	upsertSQL  string
	selectSQL  string
	deleteSQL  string
	purgeSQL   string
	clearSQL   string
	listSQL    string
	cleanupSQL string
}

// New creates a store on top of an opened database.
func New(database *db.DB, opts ...Option) *Store {
	s := &Store{
		db:  database,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	t, p := database.Table(), database.Dialect().Placeholder
	s.upsertSQL = fmt.Sprintf(`
		INSERT INTO %s (key, value, expiration)
		VALUES (%s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expiration = excluded.expiration
	`, t, p(1), p(2), p(3))
	s.selectSQL = fmt.Sprintf(`SELECT value, expiration FROM %s WHERE key = %s`, t, p(1))
	s.deleteSQL = fmt.Sprintf(`DELETE FROM %s WHERE key = %s`, t, p(1))
	s.purgeSQL = fmt.Sprintf(`DELETE FROM %s WHERE key = %s AND expiration IS NOT NULL AND expiration <= %s`, t, p(1), p(2))
	s.clearSQL = fmt.Sprintf(`DELETE FROM %s`, t)
	s.listSQL = fmt.Sprintf(`
		SELECT key, value, expiration FROM %s
		WHERE expiration IS NULL OR expiration > %s
		ORDER BY key
	`, t, p(1))
	s.cleanupSQL = fmt.Sprintf(`DELETE FROM %s WHERE expiration IS NOT NULL AND expiration <= %s`, t, p(1))

	return s
}

// Table returns the backing table name.
func (s *Store) Table() string {
	return s.db.Table()
}

// Set stores a value that never expires.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl. A non-positive ttl means no expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal value for key %q: %w", ErrSerialization, key, err)
	}

	var expiration *int64
	if ttl > 0 {
		exp := s.now().Add(ttl).UnixMilli()
		expiration = &exp
	}

	if _, err := s.db.ExecContext(ctx, s.upsertSQL, key, string(data), expiration); err != nil {
		return fmt.Errorf("%w: failed to store key %q: %w", ErrStorage, key, err)
	}
	return nil
}

// Get returns the decoded value for key.
// The boolean is false when the key does not exist or has expired.
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	raw, ok, err := s.getRaw(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	value, err := decodeValue(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to unmarshal value for key %q: %w", ErrSerialization, key, err)
	}
	return value, true, nil
}

// getRaw returns the stored JSON text for a live key.
func (s *Store) getRaw(ctx context.Context, key string) (string, bool, error) {
	var raw string
	var expiration sql.NullInt64

	err := s.db.QueryRowContext(ctx, s.selectSQL, key).Scan(&raw, &expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to get key %q: %w", ErrStorage, key, err)
	}

	now := s.now().UnixMilli()
	if expiration.Valid && expiration.Int64 <= now {
		// The purge re-checks expiration so a row rewritten after the read survives.
		if s.purgeOnRead {
			if _, err := s.db.ExecContext(ctx, s.purgeSQL, key, now); err != nil {
				log.Debug().Err(err).Str("key", key).Msg("Failed to purge expired key")
			}
		}
		return "", false, nil
	}

	return raw, true, nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteSQL, key); err != nil {
		return fmt.Errorf("%w: failed to delete key %q: %w", ErrStorage, key, err)
	}
	return nil
}

// RemoveMany deletes all given keys in a single statement. Missing keys are ignored.
// Each key is one bound parameter, so the driver's limit caps len(keys)
// (32766 for SQLite, 65535 for PostgreSQL); batch larger sets at the call site.
func (s *Store) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	marks := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		marks[i] = s.db.Dialect().Placeholder(i + 1)
		args[i] = key
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key IN (%s)`, s.db.Table(), strings.Join(marks, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: failed to delete %d keys: %w", ErrStorage, len(keys), err)
	}
	return nil
}

// Clear removes every row from the table.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.clearSQL); err != nil {
		return fmt.Errorf("%w: failed to clear table: %w", ErrStorage, err)
	}
	return nil
}

// List returns all live entries ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.listSQL, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list entries: %w", ErrStorage, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key, raw string
		var expiration sql.NullInt64
		if err := rows.Scan(&key, &raw, &expiration); err != nil {
			return nil, fmt.Errorf("%w: failed to scan entry: %w", ErrStorage, err)
		}

		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal value for key %q: %w", ErrSerialization, key, err)
		}

		entry := Entry{Key: key, Value: value}
		if expiration.Valid {
			entry.ExpiresAt = time.UnixMilli(expiration.Int64)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list entries: %w", ErrStorage, err)
	}

	return entries, nil
}

// CleanupExpired removes all expired rows and returns how many were deleted.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.cleanupSQL, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to cleanup expired entries: %w", ErrStorage, err)
	}
	return result.RowsAffected()
}

// Ping checks that the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// decodeValue parses stored JSON text into the generic value tree.
// Numbers decode as json.Number so integers round-trip without loss.
func decodeValue(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return value, nil
}
