// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// SessionManager owns the session state machine
// (Anonymous -> Authenticated -> Destroyed). It is the only component that
// mutates session state.
type SessionManager struct {
	store SessionStore
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(store SessionStore) (*SessionManager, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	}
	return &SessionManager{store: store}, nil
}

// Resume loads the session for a client token. A missing, malformed, expired
// or destroyed token yields a new anonymous session marked Fresh.
func (m *SessionManager) Resume(ctx context.Context, token string) (*Session, error) {
	if ValidTokenFormat(token) {
		userID, err := m.store.GetPrincipal(ctx, token)
		switch {
		case err == nil && userID != nil:
			return &Session{Token: token, State: SessionAuthenticated, UserID: *userID}, nil
		case err == nil:
			return &Session{Token: token, State: SessionAnonymous}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, oops.Code("SESSION_RESUME_FAILED").
				With("operation", "get principal").
				Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
		}
	}

	newToken, err := m.store.Create(ctx)
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "create anonymous session").
			Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return &Session{Token: newToken, State: SessionAnonymous, Fresh: true}, nil
}

// Authenticate moves an anonymous session to Authenticated. The session is
// regenerated first and the principal bound to the new token only after the
// regeneration is durable. On ErrSessionRegeneration sess is left untouched.
func (m *SessionManager) Authenticate(ctx context.Context, sess *Session, userID int64) error {
	if sess == nil || sess.State != SessionAnonymous {
		return oops.Code("AUTH_ALREADY_AUTHENTICATED").Wrap(ErrAlreadyAuthenticated)
	}
	if userID == 0 {
		return oops.Code("SESSION_INVALID_PRINCIPAL").Wrapf(ErrInvalidInput, "user ID cannot be zero")
	}

	newToken, err := m.store.Regenerate(ctx, sess.Token)
	if err != nil {
		return oops.Code("SESSION_REGENERATE_FAILED").
			With("operation", "regenerate session").
			Wrap(fmt.Errorf("%w: %w", ErrSessionRegeneration, err))
	}

	// The old token is gone; from here on sess tracks the new one even if the
	// bind fails, leaving a fresh anonymous session.
	sess.Token = newToken
	sess.Fresh = true

	if err := m.store.BindPrincipal(ctx, newToken, userID); err != nil {
		return oops.Code("SESSION_BIND_FAILED").
			With("operation", "bind principal").
			With("user_id", userID).
			Wrap(fmt.Errorf("%w: %w", ErrSessionRegeneration, err))
	}

	sess.State = SessionAuthenticated
	sess.UserID = userID
	return nil
}

// Destroy invalidates the session. sess is marked Destroyed only when the
// store confirmed the deletion.
func (m *SessionManager) Destroy(ctx context.Context, sess *Session) error {
	if sess == nil || sess.State == SessionDestroyed {
		return nil
	}
	if err := m.store.Destroy(ctx, sess.Token); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "destroy session").
			Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	sess.State = SessionDestroyed
	sess.UserID = 0
	return nil
}

// Flash queues a message for the next render of sess.
func (m *SessionManager) Flash(ctx context.Context, sess *Session, severity Severity, message string) error {
	if sess == nil || sess.State == SessionDestroyed {
		return oops.Code("SESSION_FLASH_FAILED").Wrap(ErrNotFound)
	}
	if !severity.Valid() {
		return oops.Code("SESSION_FLASH_FAILED").
			With("severity", string(severity)).
			Wrapf(ErrInvalidInput, "unknown flash severity")
	}
	if err := m.store.SetFlash(ctx, sess.Token, severity, message); err != nil {
		return oops.Code("SESSION_FLASH_FAILED").
			With("operation", "set flash").
			Wrap(err)
	}
	return nil
}

// TakeFlashes returns and clears the pending messages of sess.
func (m *SessionManager) TakeFlashes(ctx context.Context, sess *Session) ([]Flash, error) {
	if sess == nil || sess.State == SessionDestroyed {
		return nil, nil
	}
	flashes, err := m.store.TakeFlash(ctx, sess.Token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_TAKE_FLASH_FAILED").
			With("operation", "take flash").
			Wrap(err)
	}
	return LimitFlashes(flashes), nil
}
