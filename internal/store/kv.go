// Package store provides the small persistent key-value stores that keep the
// client session between runs.
//
// Backends:
//   - SQLiteStore: a single kv table in a SQLite file (default)
//   - FileStore: a JSON document on disk
//   - MemoryStore: process-local, for tests and --ephemeral runs
//
// Every backend initializes lazily. Ready may be called any number of times
// from any goroutine; all callers wait for the first initialization.
package store

import (
	"context"
	"errors"
	"fmt"

	"arvore/internal/config"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// KV is a string key-value store.
type KV interface {
	// Ready blocks until the store finished initializing.
	Ready(ctx context.Context) error
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Reloader is implemented by backends that cache the persisted data in
// memory. Reload re-reads it so writes from other processes become visible.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Open returns the backend selected by cfg. The store is not initialized
// until the first call to Ready (or any operation).
func Open(cfg config.SessionConfig) (KV, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Path), nil
	case config.BackendFile:
		return NewFileStore(cfg.Path), nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
