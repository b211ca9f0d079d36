// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/sharegate/sharegate/internal/auth"
)

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)

type sessionEntry struct {
	userID    *int64
	flashes   []auth.Flash
	expiresAt time.Time
}

// SessionStore keeps sessions in a map keyed by token hash. Each access
// slides the idle expiry forward by the TTL.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates an empty SessionStore. A non-positive ttl selects
// auth.DefaultSessionTTL.
func NewSessionStore(ttl time.Duration, opts ...Option) *SessionStore {
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	s := &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements auth.SessionStore.
func (s *SessionStore) Create(_ context.Context) (string, error) {
	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[hash] = &sessionEntry{expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

// Regenerate implements auth.SessionStore. The old entry is removed and the
// new one inserted under the same lock.
func (s *SessionStore) Regenerate(_ context.Context, oldToken string) (string, error) {
	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, auth.HashSessionToken(oldToken))
	s.sessions[hash] = &sessionEntry{expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

// BindPrincipal implements auth.SessionStore.
func (s *SessionStore) BindPrincipal(_ context.Context, token string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.liveLocked(token)
	if err != nil {
		return err
	}
	id := userID
	e.userID = &id
	return nil
}

// GetPrincipal implements auth.SessionStore.
func (s *SessionStore) GetPrincipal(_ context.Context, token string) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.liveLocked(token)
	if err != nil {
		return nil, err
	}
	if e.userID == nil {
		return nil, nil
	}
	id := *e.userID
	return &id, nil
}

// Destroy implements auth.SessionStore.
func (s *SessionStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := auth.HashSessionToken(token)
	if _, ok := s.sessions[hash]; !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(s.sessions, hash)
	return nil
}

// SetFlash implements auth.SessionStore.
func (s *SessionStore) SetFlash(_ context.Context, token string, severity auth.Severity, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.liveLocked(token)
	if err != nil {
		return err
	}
	e.flashes = append(e.flashes, auth.Flash{Severity: severity, Message: message})
	return nil
}

// TakeFlash implements auth.SessionStore.
func (s *SessionStore) TakeFlash(_ context.Context, token string) ([]auth.Flash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.liveLocked(token)
	if err != nil {
		return nil, err
	}
	flashes := e.flashes
	e.flashes = nil
	return flashes, nil
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for hash, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// liveLocked returns the entry for token and slides its expiry. Expired
// entries are dropped on sight.
func (s *SessionStore) liveLocked(token string) (*sessionEntry, error) {
	hash := auth.HashSessionToken(token)
	e, ok := s.sessions[hash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	now := s.now()
	if !now.Before(e.expiresAt) {
		delete(s.sessions, hash)
		return nil, oops.Code("SESSION_EXPIRED").Wrap(auth.ErrNotFound)
	}
	e.expiresAt = now.Add(s.ttl)
	return e, nil
}
