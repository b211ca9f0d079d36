// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sharegate/sharegate/internal/auth"
)

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)

// SessionStore implements auth.SessionStore using PostgreSQL. Rows are keyed
// by the SHA-256 of the token; the plaintext token is never stored. Every
// successful access slides expires_at forward by the TTL.
type SessionStore struct {
	pool poolIface
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionStore creates a new SessionStore. A non-positive ttl selects
// auth.DefaultSessionTTL.
func NewSessionStore(pool poolIface, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	return &SessionStore{pool: pool, ttl: ttl, now: time.Now}
}

const insertSession = `
	INSERT INTO web_sessions (id, token_hash, created_at, last_seen_at, expires_at)
	VALUES ($1, $2, $3, $3, $4)
`

// Create issues a new anonymous session.
func (s *SessionStore) Create(ctx context.Context) (string, error) {
	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	if _, err := s.pool.Exec(ctx, insertSession, ulid.Make().String(), hash, now, now.Add(s.ttl)); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			Wrap(err)
	}
	return token, nil
}

// Regenerate deletes the old session and inserts a fresh anonymous one in a
// single transaction.
func (s *SessionStore) Regenerate(ctx context.Context, oldToken string) (string, error) {
	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", oops.Code("SESSION_REGENERATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM web_sessions WHERE token_hash = $1`, auth.HashSessionToken(oldToken)); err != nil {
		return "", oops.Code("SESSION_REGENERATE_FAILED").
			With("operation", "delete old session").
			Wrap(err)
	}

	now := s.now()
	if _, err := tx.Exec(ctx, insertSession, ulid.Make().String(), hash, now, now.Add(s.ttl)); err != nil {
		return "", oops.Code("SESSION_REGENERATE_FAILED").
			With("operation", "insert new session").
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", oops.Code("SESSION_REGENERATE_FAILED").
			With("operation", "commit").
			Wrap(err)
	}
	return token, nil
}

// BindPrincipal binds userID to the live session identified by token.
func (s *SessionStore) BindPrincipal(ctx context.Context, token string, userID int64) error {
	now := s.now()
	tag, err := s.pool.Exec(ctx, `
		UPDATE web_sessions
		SET user_id = $2, last_seen_at = $3, expires_at = $4
		WHERE token_hash = $1 AND expires_at > $3
	`, auth.HashSessionToken(token), userID, now, now.Add(s.ttl))
	if err != nil {
		return oops.Code("SESSION_BIND_FAILED").
			With("operation", "bind principal").
			With("user_id", userID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// GetPrincipal returns the bound user ID of a live session and touches it.
func (s *SessionStore) GetPrincipal(ctx context.Context, token string) (*int64, error) {
	now := s.now()
	var userID *int64
	err := s.pool.QueryRow(ctx, `
		UPDATE web_sessions
		SET last_seen_at = $2, expires_at = $3
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING user_id
	`, auth.HashSessionToken(token), now, now.Add(s.ttl)).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get principal").
			Wrap(err)
	}
	return userID, nil
}

// Destroy deletes the session identified by token.
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM web_sessions WHERE token_hash = $1`, auth.HashSessionToken(token))
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetFlash appends a flash to the session's queue.
func (s *SessionStore) SetFlash(ctx context.Context, token string, severity auth.Severity, message string) error {
	payload, err := json.Marshal([]auth.Flash{{Severity: severity, Message: message}})
	if err != nil {
		return oops.Code("SESSION_FLASH_FAILED").With("operation", "marshal flash").Wrap(err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE web_sessions
		SET flashes = flashes || $2::jsonb
		WHERE token_hash = $1 AND expires_at > $3
	`, auth.HashSessionToken(token), string(payload), s.now())
	if err != nil {
		return oops.Code("SESSION_FLASH_FAILED").
			With("operation", "append flash").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// TakeFlash returns and clears the session's flashes in one statement.
func (s *SessionStore) TakeFlash(ctx context.Context, token string) ([]auth.Flash, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		WITH old AS (
			SELECT id, flashes FROM web_sessions
			WHERE token_hash = $1 AND expires_at > $2
			FOR UPDATE
		)
		UPDATE web_sessions AS ws
		SET flashes = '[]'::jsonb
		FROM old
		WHERE ws.id = old.id
		RETURNING old.flashes
	`, auth.HashSessionToken(token), s.now()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_TAKE_FLASH_FAILED").
			With("operation", "take flashes").
			Wrap(err)
	}

	var flashes []auth.Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil, oops.Code("SESSION_TAKE_FLASH_FAILED").
			With("operation", "unmarshal flashes").
			Wrap(err)
	}
	if len(flashes) == 0 {
		return nil, nil
	}
	return flashes, nil
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}
