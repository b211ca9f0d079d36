// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/sharegate/sharegate/pkg/errutil"
)

// Gate answers whether a request is bound to an existing principal.
type Gate struct {
	users  UserRepository
	logger *slog.Logger
}

// NewGate creates a new Gate.
func NewGate(users UserRepository, logger *slog.Logger) (*Gate, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	return &Gate{users: users, logger: logger}, nil
}

// IsAuthenticated is true iff sess is authenticated and its principal still
// exists. Any lookup failure counts as unauthenticated.
func (g *Gate) IsAuthenticated(ctx context.Context, sess *Session) bool {
	_, ok := g.Principal(ctx, sess)
	return ok
}

// Principal returns the user bound to sess when the gate would pass.
func (g *Gate) Principal(ctx context.Context, sess *Session) (*User, bool) {
	if !sess.IsAuthenticated() {
		return nil, false
	}
	user, err := g.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.logger.WarnContext(ctx, "session bound to missing user", "user_id", sess.UserID)
		} else {
			errutil.LogErrorContext(ctx, g.logger, "principal lookup failed", err)
		}
		return nil, false
	}
	return user, true
}
