// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/samber/oops"
)

// Credential validation constraints.
const (
	MaxEmailLength    = 254
	MaxPasswordLength = 1024
)

// User is an identity record. At least one of PasswordHash and OAuthSubject
// is set.
type User struct {
	ID           int64
	Email        string
	PasswordHash *string
	OAuthSubject *string
	CreatedAt    time.Time
}

// HasPassword reports whether the user can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// NewPasswordUser creates a validated password-only user ready for insertion.
func NewPasswordUser(email, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Wrapf(ErrInvalidInput, "password hash cannot be empty")
	}
	return &User{
		Email:        email,
		PasswordHash: &passwordHash,
		CreatedAt:    time.Now(),
	}, nil
}

// NewOAuthUser creates a validated OAuth-only user ready for insertion.
func NewOAuthUser(email, subject string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, oops.Code("USER_INVALID_SUBJECT").Wrapf(ErrInvalidInput, "oauth subject cannot be empty")
	}
	return &User{
		Email:        email,
		OAuthSubject: &subject,
		CreatedAt:    time.Now(),
	}, nil
}

// ValidateEmail checks that email is a bare RFC 5322 address.
// The address is kept exactly as given; no case folding is applied.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrInvalidInput, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrapf(ErrInvalidInput, "email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrInvalidInput, "email is not a valid address")
	}
	return nil
}

// ValidatePassword checks password length limits.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_EMPTY_PASSWORD").Wrapf(ErrInvalidInput, "password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Wrapf(ErrInvalidInput, "password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// UserRepository is the persistence collaborator for users.
type UserRepository interface {
	// FindByID retrieves a user by ID. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, id int64) (*User, error)

	// FindByEmail retrieves a user by exact email. Returns ErrNotFound if absent.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByOAuthSubject retrieves a user by provider subject id.
	// Returns ErrNotFound if absent.
	FindByOAuthSubject(ctx context.Context, subject string) (*User, error)

	// InsertPasswordUser stores a password user and assigns its ID.
	// Returns ErrDuplicateEmail if the email is taken.
	InsertPasswordUser(ctx context.Context, user *User) error

	// InsertOAuthUser stores an OAuth user and assigns its ID.
	// Returns ErrDuplicateSubject if the subject is linked already and
	// ErrDuplicateEmail if the email is taken.
	InsertOAuthUser(ctx context.Context, user *User) error
}
