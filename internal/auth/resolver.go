// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified against when there is no real target hash,
// so an unknown email costs the same as a wrong password. It uses the
// production parameters and never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// IdentityResolver maps credential proofs to canonical users.
type IdentityResolver struct {
	users  UserRepository
	hasher PasswordHasher
}

// NewIdentityResolver creates a new IdentityResolver.
func NewIdentityResolver(users UserRepository, hasher PasswordHasher) (*IdentityResolver, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	return &IdentityResolver{users: users, hasher: hasher}, nil
}

// RegisterWithPassword creates a password user. A taken email yields
// ErrDuplicateEmail; nothing is written in any failure case.
func (r *IdentityResolver) RegisterWithPassword(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(ctx, password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewPasswordUser(email, hash)
	if err != nil {
		return nil, err
	}

	if err := r.users.InsertPasswordUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, oops.Code("AUTH_DUPLICATE_EMAIL").
				With("email", email).
				Wrap(err)
		}
		return nil, persistenceError("insert password user", err)
	}
	return user, nil
}

// ResolveOAuthIdentity returns the user linked to subject, creating one on
// first sight. An existing user is returned unchanged, even if the provider
// now reports a different email.
func (r *IdentityResolver) ResolveOAuthIdentity(ctx context.Context, subject, email string) (*User, error) {
	if subject == "" {
		return nil, oops.Code("AUTH_INVALID_SUBJECT").Wrapf(ErrInvalidInput, "oauth subject cannot be empty")
	}

	user, err := r.users.FindByOAuthSubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, persistenceError("find user by oauth subject", err)
	}

	user, err = NewOAuthUser(email, subject)
	if err != nil {
		return nil, err
	}

	err = r.users.InsertOAuthUser(ctx, user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrDuplicateSubject) && !errors.Is(err, ErrDuplicateEmail) {
		return nil, persistenceError("insert oauth user", err)
	}

	// A concurrent callback for the same subject may have won the insert. The
	// store can report that race as either violation, depending on which
	// unique index it checks first.
	existing, findErr := r.users.FindByOAuthSubject(ctx, subject)
	switch {
	case findErr == nil:
		return existing, nil
	case !errors.Is(findErr, ErrNotFound):
		return nil, persistenceError("re-read user by oauth subject", findErr)
	case errors.Is(err, ErrDuplicateEmail):
		// Accounts are never merged by email.
		return nil, oops.Code("AUTH_OAUTH_EMAIL_CONFLICT").
			With("email", email).
			Wrap(err)
	default:
		return nil, persistenceError("insert oauth user", err)
	}
}

// AuthenticatePassword verifies a password login. Unknown email, OAuth-only
// account and wrong password are indistinguishable to the caller.
func (r *IdentityResolver) AuthenticatePassword(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := r.users.FindByEmail(ctx, email)

	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil && user.HasPassword():
		targetHash = *user.PasswordHash
	case lookupErr == nil, errors.Is(lookupErr, ErrNotFound):
		user = nil
	default:
		return nil, persistenceError("find user by email", lookupErr)
	}

	// Always verify so response time does not reveal whether the account exists.
	// Verify errors are never credential errors; the dummy hash always parses.
	valid, err := r.hasher.Verify(ctx, password, targetHash)
	if err != nil {
		fail := oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password")
		if user != nil {
			fail = fail.With("user_id", user.ID)
		}
		return nil, fail.Wrap(err)
	}
	if user == nil || !valid {
		return nil, invalidCredentials()
	}
	return user, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

func persistenceError(operation string, err error) error {
	return oops.Code("AUTH_PERSISTENCE_FAILED").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
}
