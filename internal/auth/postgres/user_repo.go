// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/sharegate/sharegate/internal/auth"
)

// Constraint names from migration 000001.
const (
	constraintEmail   = "users_email_key"
	constraintSubject = "users_oauth_subject_key"
)

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

const selectUser = `
	SELECT id, email, password_hash, oauth_subject, created_at
	FROM users
`

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, selectUser+`WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// FindByEmail retrieves a user by exact email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, selectUser+`WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// FindByOAuthSubject retrieves a user by provider subject id.
func (r *UserRepository) FindByOAuthSubject(ctx context.Context, subject string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, selectUser+`WHERE oauth_subject = $1`, subject)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("subject", subject).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_SUBJECT_FAILED").
			With("operation", "get user by oauth subject").
			Wrap(err)
	}
	return user, nil
}

// InsertPasswordUser stores a password user and assigns its ID.
func (r *UserRepository) InsertPasswordUser(ctx context.Context, user *auth.User) error {
	return r.insert(ctx, user, "insert password user")
}

// InsertOAuthUser stores an OAuth user and assigns its ID.
func (r *UserRepository) InsertOAuthUser(ctx context.Context, user *auth.User) error {
	return r.insert(ctx, user, "insert oauth user")
}

func (r *UserRepository) insert(ctx context.Context, user *auth.User, operation string) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, oauth_subject, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`,
		user.Email,
		user.PasswordHash,
		user.OAuthSubject,
		user.CreatedAt,
	).Scan(&user.ID)
	if err == nil {
		return nil
	}

	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case constraintSubject:
			return oops.Code("USER_DUPLICATE_SUBJECT").
				With("constraint", constraint).
				Wrap(fmt.Errorf("%w: %w", auth.ErrDuplicateSubject, err))
		case constraintEmail:
			return oops.Code("USER_DUPLICATE_EMAIL").
				With("constraint", constraint).
				Wrap(fmt.Errorf("%w: %w", auth.ErrDuplicateEmail, err))
		}
	}
	return oops.Code("USER_CREATE_FAILED").
		With("operation", operation).
		Wrap(err)
}

// Delete removes a user. Sessions bound to it are left for the gate to
// reject and for session pruning to collect.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.OAuthSubject, &u.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	return &u, nil
}
