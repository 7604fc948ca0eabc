// Package backend defines the local persistence contract for the serialized
// task state and a registry of the available implementations.
package backend

import (
	"context"
)

// Well-known keys. Backends prefix them with their namespace.
const (
	StateKey    = "state"
	RollDateKey = "lastRollDate"
)

// StateBackend persists the serialized state document and small named values.
type StateBackend interface {
	// Load returns the stored state document, or nil, nil when none exists.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored state document.
	Save(ctx context.Context, doc []byte) error

	// GetValue returns a named value, or "" when unset.
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error

	// WatchPath returns the directory to watch for external writes and the
	// file name prefix of the files that hold the state. An empty dir means
	// the backend cannot be watched.
	WatchPath() (dir, prefix string)

	Close() error
}

// Options configure a backend constructor.
type Options struct {
	Path      string
	Namespace string
}

// Key returns the namespaced storage key for name.
func (o Options) Key(name string) string {
	return o.Namespace + name
}
