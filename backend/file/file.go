// Package file stores each key as a JSON file in a directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"daybucket/backend"
)

func init() {
	backend.Register("file", func(opts backend.Options) (backend.StateBackend, error) {
		return New(opts)
	})
}

// Backend implements backend.StateBackend with one file per key
type Backend struct {
	dir  string
	opts backend.Options
}

// New creates a file backend rooted at opts.Path
func New(opts backend.Options) (*Backend, error) {
	dir := opts.Path
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Backend{dir: dir, opts: opts}, nil
}

// pathFor returns <dir>/<namespace><key>.json
func (b *Backend) pathFor(key string) string {
	return filepath.Join(b.dir, b.opts.Key(key)+".json")
}

// Load returns the stored state document
func (b *Backend) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.pathFor(backend.StateKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return data, nil
}

// Save replaces the stored state document
func (b *Backend) Save(ctx context.Context, doc []byte) error {
	return b.writeAtomic(b.pathFor(backend.StateKey), doc)
}

// GetValue returns a named value stored as a JSON string
func (b *Backend) GetValue(ctx context.Context, key string) (string, error) {
	data, err := os.ReadFile(b.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return v, nil
}

// SetValue stores a named value as a JSON string
func (b *Backend) SetValue(ctx context.Context, key, value string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.writeAtomic(b.pathFor(key), data)
}

// writeAtomic writes data to a temp file in the same directory and renames it
// over path.
func (b *Backend) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WatchPath returns the state directory and the state file's name prefix
func (b *Backend) WatchPath() (string, string) {
	return b.dir, b.opts.Key(backend.StateKey)
}

// Close is a no-op
func (b *Backend) Close() error {
	return nil
}
