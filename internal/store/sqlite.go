package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"arvore/internal/logging"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps key-value pairs in a single SQLite table.
type SQLiteStore struct {
	path string
	open func(path string) (*sql.DB, error)

	once    sync.Once
	initErr error

	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewSQLiteStore returns a store backed by the SQLite file at path.
// ":memory:" gives a throwaway database.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path, open: openSQLite}
}

// NewSQLiteStoreWithDB wraps an already opened database.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		path: "(external)",
		open: func(string) (*sql.DB, error) { return db, nil },
	}
}

func openSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}
	return db, nil
}

// Ready opens the database and creates the schema on first use.
func (s *SQLiteStore) Ready(ctx context.Context) error {
	s.once.Do(func() {
		timer := logging.StartTimer(logging.CategoryStore, "SQLiteStore.init")
		defer timer.Stop()

		db, err := s.open(s.path)
		if err != nil {
			s.initErr = err
			return
		}
		const schema = `CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			s.initErr = fmt.Errorf("failed to initialize schema: %w", err)
			return
		}

		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
		logging.Store("SQLite session store ready at %s", s.path)
	})
	return s.initErr
}

func (s *SQLiteStore) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.db, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	logging.StoreDebug("set %s", key)
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	logging.StoreDebug("removed %s", key)
	return nil
}

// Close closes the database. Further operations return ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
