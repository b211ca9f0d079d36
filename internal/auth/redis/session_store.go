// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package redis implements auth.SessionStore on Redis. Expiry is native:
// every key carries the session TTL, refreshed on each access.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/sharegate/sharegate/internal/auth"
)

const (
	keyPrefix      = "sharegate:session:"
	fieldUserID    = "user_id"
	fieldCreatedAt = "created_at"
	maxTxRetries   = 3
)

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)

// SessionStore keeps each session in a hash at sharegate:session:<token hash>
// and its flashes in a list at the same key with a :flash suffix.
type SessionStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewSessionStore creates a new SessionStore. A non-positive ttl selects
// auth.DefaultSessionTTL.
func NewSessionStore(client goredis.UniversalClient, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return keyPrefix + auth.HashSessionToken(token)
}

func flashKey(token string) string {
	return sessionKey(token) + ":flash"
}

func notFound() error {
	return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Create issues a new anonymous session.
func (s *SessionStore) Create(ctx context.Context) (string, error) {
	token, _, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		s.queueNew(ctx, pipe, token)
		return nil
	})
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "create session hash").
			Wrap(err)
	}
	return token, nil
}

// Regenerate drops the old session and creates a new one in one MULTI block.
func (s *SessionStore) Regenerate(ctx context.Context, oldToken string) (string, error) {
	token, _, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(oldToken), flashKey(oldToken))
		s.queueNew(ctx, pipe, token)
		return nil
	})
	if err != nil {
		return "", oops.Code("SESSION_REGENERATE_FAILED").
			With("operation", "swap session keys").
			Wrap(err)
	}
	return token, nil
}

func (s *SessionStore) queueNew(ctx context.Context, pipe goredis.Pipeliner, token string) {
	key := sessionKey(token)
	pipe.HSet(ctx, key, fieldCreatedAt, time.Now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, s.ttl)
}

// BindPrincipal binds userID to a live session.
func (s *SessionStore) BindPrincipal(ctx context.Context, token string, userID int64) error {
	key := sessionKey(token)
	err := s.watch(ctx, func(tx *goredis.Tx) error {
		if err := requireExists(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldUserID, strconv.FormatInt(userID, 10))
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err //nolint:wrapcheck // wrapped below
	}, key)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return err
		}
		return oops.Code("SESSION_BIND_FAILED").
			With("operation", "bind principal").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// GetPrincipal returns the bound user ID of a live session and refreshes
// its expiry.
func (s *SessionStore) GetPrincipal(ctx context.Context, token string) (*int64, error) {
	key := sessionKey(token)
	var fields *goredis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, key)
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, flashKey(token), s.ttl)
		return nil
	})
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get principal").
			Wrap(err)
	}

	values := fields.Val()
	if len(values) == 0 {
		return nil, notFound()
	}
	raw, ok := values[fieldUserID]
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").
			With("field", fieldUserID).
			Wrap(err)
	}
	return &id, nil
}

// Destroy deletes the session and its flashes.
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	var deleted *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		deleted = pipe.Del(ctx, sessionKey(token))
		pipe.Del(ctx, flashKey(token))
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session keys").
			Wrap(err)
	}
	if deleted.Val() == 0 {
		return notFound()
	}
	return nil
}

// SetFlash appends a flash to a live session.
func (s *SessionStore) SetFlash(ctx context.Context, token string, severity auth.Severity, message string) error {
	payload, err := json.Marshal(auth.Flash{Severity: severity, Message: message})
	if err != nil {
		return oops.Code("SESSION_FLASH_FAILED").With("operation", "marshal flash").Wrap(err)
	}

	key, fkey := sessionKey(token), flashKey(token)
	err = s.watch(ctx, func(tx *goredis.Tx) error {
		if err := requireExists(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(ctx, fkey, payload)
			pipe.Expire(ctx, fkey, s.ttl)
			return nil
		})
		return err //nolint:wrapcheck // wrapped below
	}, key)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return err
		}
		return oops.Code("SESSION_FLASH_FAILED").
			With("operation", "append flash").
			Wrap(err)
	}
	return nil
}

// TakeFlash returns and clears the flashes of a live session.
func (s *SessionStore) TakeFlash(ctx context.Context, token string) ([]auth.Flash, error) {
	key, fkey := sessionKey(token), flashKey(token)
	var items *goredis.StringSliceCmd
	err := s.watch(ctx, func(tx *goredis.Tx) error {
		if err := requireExists(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			items = pipe.LRange(ctx, fkey, 0, -1)
			pipe.Del(ctx, fkey)
			return nil
		})
		return err //nolint:wrapcheck // wrapped below
	}, key, fkey)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("SESSION_TAKE_FLASH_FAILED").
			With("operation", "take flashes").
			Wrap(err)
	}

	raw := items.Val()
	if len(raw) == 0 {
		return nil, nil
	}
	flashes := make([]auth.Flash, 0, len(raw))
	for _, item := range raw {
		var f auth.Flash
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			return nil, oops.Code("SESSION_TAKE_FLASH_FAILED").
				With("operation", "unmarshal flash").
				Wrap(err)
		}
		flashes = append(flashes, f)
	}
	return flashes, nil
}

// DeleteExpired is a no-op: Redis expires keys itself.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// watch runs fn in an optimistic transaction over keys, retrying when a
// concurrent writer touches them.
func (s *SessionStore) watch(ctx context.Context, fn func(*goredis.Tx) error, keys ...string) error {
	var err error
	for range maxTxRetries {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err //nolint:wrapcheck // callers wrap
		}
	}
	return err //nolint:wrapcheck // callers wrap
}

func requireExists(ctx context.Context, tx *goredis.Tx, key string) error {
	n, err := tx.Exists(ctx, key).Result()
	if err != nil {
		return err //nolint:wrapcheck // callers wrap
	}
	if n == 0 {
		return notFound()
	}
	return nil
}
