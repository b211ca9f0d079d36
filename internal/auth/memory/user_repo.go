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
var _ auth.UserRepository = (*UserRepository)(nil)

// UserRepository keeps users in maps guarded by a mutex. Email and subject
// uniqueness match the postgres constraints.
type UserRepository struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*auth.User
	byEmail   map[string]int64
	bySubject map[string]int64
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:      make(map[int64]*auth.User),
		byEmail:   make(map[string]int64),
		bySubject: make(map[string]int64),
	}
}

// FindByID implements auth.UserRepository.
func (r *UserRepository) FindByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return cloneUser(u), nil
}

// FindByEmail implements auth.UserRepository.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return cloneUser(r.byID[id]), nil
}

// FindByOAuthSubject implements auth.UserRepository.
func (r *UserRepository) FindByOAuthSubject(_ context.Context, subject string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySubject[subject]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("subject", subject).Wrap(auth.ErrNotFound)
	}
	return cloneUser(r.byID[id]), nil
}

// InsertPasswordUser implements auth.UserRepository.
func (r *UserRepository) InsertPasswordUser(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[user.Email]; taken {
		return oops.Code("USER_DUPLICATE_EMAIL").With("email", user.Email).Wrap(auth.ErrDuplicateEmail)
	}
	r.insertLocked(user)
	return nil
}

// InsertOAuthUser implements auth.UserRepository.
func (r *UserRepository) InsertOAuthUser(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Same order as the postgres unique indexes: a row colliding on both
	// reports the email.
	if _, taken := r.byEmail[user.Email]; taken {
		return oops.Code("USER_DUPLICATE_EMAIL").With("email", user.Email).Wrap(auth.ErrDuplicateEmail)
	}
	if user.OAuthSubject != nil {
		if _, taken := r.bySubject[*user.OAuthSubject]; taken {
			return oops.Code("USER_DUPLICATE_SUBJECT").Wrap(auth.ErrDuplicateSubject)
		}
	}
	r.insertLocked(user)
	return nil
}

// Delete removes a user. Sessions bound to it stay in their store; the
// authorization gate rejects them.
func (r *UserRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	if u.OAuthSubject != nil {
		delete(r.bySubject, *u.OAuthSubject)
	}
	return nil
}

func (r *UserRepository) insertLocked(user *auth.User) {
	r.nextID++
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := cloneUser(user)
	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID
	if stored.OAuthSubject != nil {
		r.bySubject[*stored.OAuthSubject] = stored.ID
	}
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		c.PasswordHash = &h
	}
	if u.OAuthSubject != nil {
		s := *u.OAuthSubject
		c.OAuthSubject = &s
	}
	return &c
}
