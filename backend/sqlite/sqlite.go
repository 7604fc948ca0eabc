// Package sqlite stores the state document in a single-table SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"daybucket/backend"
)

func init() {
	backend.Register("sqlite", func(opts backend.Options) (backend.StateBackend, error) {
		return New(opts)
	})
}

// Backend implements backend.StateBackend using SQLite
type Backend struct {
	db   *sql.DB
	path string
	opts backend.Options
}

// New opens the database at opts.Path and initializes the schema
func New(opts backend.Options) (*Backend, error) {
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, path: opts.Path, opts: opts}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// initSchema creates the key-value table if it doesn't exist
func (b *Backend) initSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			modified TEXT NOT NULL
		);
	`)
	return err
}

// Load returns the stored state document
func (b *Backend) Load(ctx context.Context) ([]byte, error) {
	v, ok, err := b.get(ctx, backend.StateKey)
	if err != nil || !ok {
		return nil, err
	}
	return []byte(v), nil
}

// Save replaces the stored state document
func (b *Backend) Save(ctx context.Context, doc []byte) error {
	return b.put(ctx, backend.StateKey, string(doc))
}

// GetValue returns a named value
func (b *Backend) GetValue(ctx context.Context, key string) (string, error) {
	v, _, err := b.get(ctx, key)
	return v, err
}

// SetValue stores a named value
func (b *Backend) SetValue(ctx context.Context, key, value string) error {
	return b.put(ctx, key, value)
}

// Modified returns when key was last written, or the zero time.
func (b *Backend) Modified(ctx context.Context, key string) (time.Time, error) {
	var modifiedStr string
	err := b.db.QueryRowContext(ctx, "SELECT modified FROM kv WHERE key = ?", b.opts.Key(key)).Scan(&modifiedStr)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, _ := time.Parse(time.RFC3339Nano, modifiedStr)
	return t, nil
}

func (b *Backend) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", b.opts.Key(key)).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (b *Backend) put(ctx context.Context, key, value string) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, modified) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, modified = excluded.modified`,
		b.opts.Key(key), value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// WatchPath returns the database directory and file name. The prefix also
// matches the -wal and -journal files.
func (b *Backend) WatchPath() (string, string) {
	if b.path == ":memory:" {
		return "", ""
	}
	return filepath.Dir(b.path), filepath.Base(b.path)
}

// Close closes the database connection
func (b *Backend) Close() error {
	return b.db.Close()
}
