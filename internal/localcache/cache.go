// Package localcache is the device-local persistent store. It keeps the
// live quiz session as a handful of string keys in a small SQLite file,
// the same shape a browser would keep in local storage.
package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/examiz/internal/store"
)

const tableKV = "kv"

var builder = entsql.Dialect(dialect.SQLite)

// Cache is a string key/value store backed by SQLite.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := store.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the value for key and whether it was present.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	query, args := builder.Select("value").
		From(builder.Table(tableKV)).
		Where(entsql.EQ("key", key)).
		Query()
	var v string
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// GetMany returns the values present for keys.
func (c *Cache) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query, qargs := builder.Select("key", "value").
		From(builder.Table(tableKV)).
		Where(entsql.In("key", args...)).
		Query()
	rows, err := c.db.QueryContext(ctx, query, qargs...)
	if err != nil {
		return nil, fmt.Errorf("get keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan kv: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set stores a single value.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.SetMany(ctx, map[string]string{key: value})
}

// SetMany stores all values in one transaction.
func (c *Cache) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		query, args := builder.Insert(tableKV).
			Columns("key", "value").
			Values(k, v).
			OnConflict(
				entsql.ConflictColumns("key"),
				entsql.ResolveWithNewValues(),
			).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Delete removes keys. Missing keys are ignored.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query, qargs := builder.Delete(tableKV).Where(entsql.In("key", args...)).Query()
	if _, err := c.db.ExecContext(ctx, query, qargs...); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}
