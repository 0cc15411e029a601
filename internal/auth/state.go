// Package auth owns the client's authentication state. State is the single
// source of truth for "is someone logged in" and "which person is me"; only
// Service changes it, everyone else reads.
package auth

import (
	"sync"

	"arvore/internal/session"
)

// State is the in-memory session plus the authenticated signal.
type State struct {
	mu            sync.RWMutex
	sess          session.Session
	authenticated bool

	subs   map[int]chan bool
	nextID int
}

// NewState returns an unauthenticated state.
func NewState() *State {
	return &State{subs: make(map[int]chan bool)}
}

// Authenticated reports the current signal.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Token returns the in-memory token, "" when logged out.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Token
}

// CurrentUserID returns the id of the person the user represents.
func (s *State) CurrentUserID() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.UserID, s.sess.UserID != 0
}

// Username returns the display name of the current user.
func (s *State) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Username
}

// Snapshot returns a copy of the session and the signal.
func (s *State) Snapshot() (session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess, s.authenticated
}

// Subscribe returns a channel that receives the signal after every
// transition. Only the latest value is kept for a slow reader. The returned
// func unsubscribes and closes the channel.
func (s *State) Subscribe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan bool, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publish must be called with mu held.
func (s *State) publish() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.authenticated
	}
}

func (s *State) login(sess session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = sess
	s.authenticated = true
	s.publish()
}

func (s *State) logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = session.Session{}
	s.authenticated = false
	s.publish()
}

// impersonate changes who "me" is without touching the token.
func (s *State) impersonate(userID int, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.UserID = userID
	s.sess.Username = username
	s.publish()
}
