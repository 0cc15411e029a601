package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"arvore/internal/logging"
)

// fileFormat is the on-disk document
type fileFormat struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

const fileFormatVersion = 1

// FileStore keeps key-value pairs in a JSON file. Every write rewrites the
// whole document through a temp file and a rename.
type FileStore struct {
	path string

	once    sync.Once
	initErr error

	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file backing the store.
func (s *FileStore) Path() string { return s.path }

// Ready loads the file on first use. A missing file is an empty store.
func (s *FileStore) Ready(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.initErr = s.loadLocked()
	})
	return s.initErr
}

// Reload re-reads the file, picking up writes from other processes.
func (s *FileStore) Reload(ctx context.Context) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() error {
	s.values = make(map[string]string)
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}
	for k, v := range doc.Values {
		s.values[k] = v
	}
	logging.StoreDebug("Loaded %d keys from %s", len(s.values), s.path)
	return nil
}

func (s *FileStore) saveLocked() error {
	doc := fileFormat{Version: fileFormatVersion, Values: s.values}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// refreshLocked re-reads the file before a write, so keys changed by another
// process are not overwritten with stale values. On failure the cached
// values are kept.
func (s *FileStore) refreshLocked() error {
	prev := s.values
	if err := s.loadLocked(); err != nil {
		s.values = prev
		return err
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.Ready(ctx); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.refreshLocked(); err != nil {
		return err
	}
	prev, had := s.values[key]
	s.values[key] = value
	if err := s.saveLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.refreshLocked(); err != nil {
		return err
	}
	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.saveLocked(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
