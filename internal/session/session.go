// Package session persists the client's authentication state: the API token,
// the id of the person the user represents in the tree, and a display name.
// These three keys are the only durable client state.
package session

import (
	"context"
	"fmt"
	"strconv"

	"arvore/internal/logging"
	"arvore/internal/store"
)

// Persistent keys.
const (
	KeyToken    = "authToken"
	KeyUserID   = "userId"
	KeyUsername = "username"
)

// Session is the client-side identity record.
type Session struct {
	Token    string
	UserID   int
	Username string
}

// Complete reports whether all three fields are set.
func (s Session) Complete() bool {
	return s.Token != "" && s.UserID != 0 && s.Username != ""
}

// Store reads and writes a Session through a KV backend.
type Store struct {
	kv store.KV
}

func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// KV exposes the underlying backend.
func (s *Store) KV() store.KV { return s.kv }

// Ready waits for the backend to finish initializing.
func (s *Store) Ready(ctx context.Context) error {
	return s.kv.Ready(ctx)
}

// refresh waits for the backend and, when it caches, re-reads it.
func (s *Store) refresh(ctx context.Context) error {
	if err := s.kv.Ready(ctx); err != nil {
		return err
	}
	if r, ok := s.kv.(store.Reloader); ok {
		return r.Reload(ctx)
	}
	return nil
}

// Token returns the stored token, or "" when none is stored.
func (s *Store) Token(ctx context.Context) (string, error) {
	if err := s.refresh(ctx); err != nil {
		return "", err
	}
	v, _, err := s.kv.Get(ctx, KeyToken)
	return v, err
}

// Load reads whatever is stored, including writes made by other processes.
// Missing keys are zero values; an unparsable user id is treated as missing.
func (s *Store) Load(ctx context.Context) (Session, error) {
	if err := s.refresh(ctx); err != nil {
		return Session{}, err
	}
	var sess Session
	var err error
	if sess.Token, _, err = s.kv.Get(ctx, KeyToken); err != nil {
		return Session{}, err
	}
	rawID, ok, err := s.kv.Get(ctx, KeyUserID)
	if err != nil {
		return Session{}, err
	}
	if ok {
		if id, perr := strconv.Atoi(rawID); perr == nil {
			sess.UserID = id
		} else {
			logging.SessionDebug("ignoring malformed %s %q", KeyUserID, rawID)
		}
	}
	if sess.Username, _, err = s.kv.Get(ctx, KeyUsername); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Save writes all three keys.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if err := s.kv.Ready(ctx); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyToken, sess.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return s.SetIdentity(ctx, sess.UserID, sess.Username)
}

// SetIdentity rewrites user id and username, leaving the token alone.
func (s *Store) SetIdentity(ctx context.Context, userID int, username string) error {
	if err := s.kv.Ready(ctx); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyUserID, strconv.Itoa(userID)); err != nil {
		return fmt.Errorf("save user id: %w", err)
	}
	if err := s.kv.Set(ctx, KeyUsername, username); err != nil {
		return fmt.Errorf("save username: %w", err)
	}
	return nil
}

// Clear removes all three keys. It attempts every key even if one fails.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Ready(ctx); err != nil {
		return err
	}
	var firstErr error
	for _, k := range []string{KeyToken, KeyUserID, KeyUsername} {
		if err := s.kv.Remove(ctx, k); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return firstErr
}

func (s *Store) Close() error {
	return s.kv.Close()
}
