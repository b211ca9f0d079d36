// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/auth/mocks"
	"github.com/sharegate/sharegate/pkg/errutil"
)

func strPtr(s string) *string { return &s }

func newResolver(t *testing.T) (*auth.IdentityResolver, *mocks.MockUserRepository, *mocks.MockPasswordHasher) {
	t.Helper()
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	r, err := auth.NewIdentityResolver(users, hasher)
	require.NoError(t, err)
	return r, users, hasher
}

func TestNewIdentityResolver_Validation(t *testing.T) {
	_, err := auth.NewIdentityResolver(nil, mocks.NewMockPasswordHasher(t))
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")

	_, err = auth.NewIdentityResolver(mocks.NewMockUserRepository(t), nil)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
}

func TestRegisterWithPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with hashed password", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		hasher.On("Hash", ctx, "hunter2").Return("$argon2id$hashed", nil)
		users.On("InsertPasswordUser", ctx, mock.MatchedBy(func(u *auth.User) bool {
			return u.Email == "ada@example.com" && u.PasswordHash != nil && *u.PasswordHash == "$argon2id$hashed" && u.OAuthSubject == nil
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*auth.User).ID = 11
		}).Return(nil)

		user, err := r.RegisterWithPassword(ctx, "ada@example.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, int64(11), user.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		hasher.On("Hash", ctx, "hunter2").Return("$argon2id$hashed", nil)
		users.On("InsertPasswordUser", ctx, mock.Anything).Return(auth.ErrDuplicateEmail)

		_, err := r.RegisterWithPassword(ctx, "ada@example.com", "hunter2")
		errutil.AssertErrorKind(t, err, "AUTH_DUPLICATE_EMAIL", auth.ErrDuplicateEmail)
	})

	t.Run("hashing failure writes nothing", func(t *testing.T) {
		r, _, hasher := newResolver(t)
		hasher.On("Hash", ctx, "hunter2").Return("", auth.ErrHashing)

		_, err := r.RegisterWithPassword(ctx, "ada@example.com", "hunter2")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrHashing)
	})

	t.Run("insert failure is a persistence error", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		hasher.On("Hash", ctx, "hunter2").Return("h", nil)
		users.On("InsertPasswordUser", ctx, mock.Anything).Return(errors.New("connection reset"))

		_, err := r.RegisterWithPassword(ctx, "ada@example.com", "hunter2")
		errutil.AssertErrorKind(t, err, "AUTH_PERSISTENCE_FAILED", auth.ErrPersistence)
		assert.NotErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("invalid input never reaches the hasher", func(t *testing.T) {
		r, _, _ := newResolver(t)
		_, err := r.RegisterWithPassword(ctx, "nope", "hunter2")
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
		_, err = r.RegisterWithPassword(ctx, "ada@example.com", "")
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})
}

func TestResolveOAuthIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("returns existing user unchanged", func(t *testing.T) {
		r, users, _ := newResolver(t)
		existing := &auth.User{ID: 5, Email: "old@example.com", OAuthSubject: strPtr("sub-1")}
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(existing, nil)

		user, err := r.ResolveOAuthIdentity(ctx, "sub-1", "new@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(5), user.ID)
		assert.Equal(t, "old@example.com", user.Email, "email is not updated")
	})

	t.Run("creates user on first sight", func(t *testing.T) {
		r, users, _ := newResolver(t)
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(nil, auth.ErrNotFound)
		users.On("InsertOAuthUser", ctx, mock.MatchedBy(func(u *auth.User) bool {
			return u.PasswordHash == nil && u.OAuthSubject != nil && *u.OAuthSubject == "sub-1"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*auth.User).ID = 9
		}).Return(nil)

		user, err := r.ResolveOAuthIdentity(ctx, "sub-1", "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(9), user.ID)
	})

	t.Run("concurrent insert re-reads winner", func(t *testing.T) {
		r, users, _ := newResolver(t)
		winner := &auth.User{ID: 3, Email: "ada@example.com", OAuthSubject: strPtr("sub-1")}
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(nil, auth.ErrNotFound).Once()
		users.On("InsertOAuthUser", ctx, mock.Anything).Return(auth.ErrDuplicateSubject)
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(winner, nil).Once()

		user, err := r.ResolveOAuthIdentity(ctx, "sub-1", "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(3), user.ID)
	})

	t.Run("race lost on the email index re-reads winner", func(t *testing.T) {
		r, users, _ := newResolver(t)
		winner := &auth.User{ID: 4, Email: "ada@example.com", OAuthSubject: strPtr("sub-1")}
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(nil, auth.ErrNotFound).Once()
		users.On("InsertOAuthUser", ctx, mock.Anything).Return(auth.ErrDuplicateEmail)
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(winner, nil).Once()

		user, err := r.ResolveOAuthIdentity(ctx, "sub-1", "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(4), user.ID)
	})

	t.Run("re-read failure after lost race", func(t *testing.T) {
		r, users, _ := newResolver(t)
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(nil, auth.ErrNotFound).Once()
		users.On("InsertOAuthUser", ctx, mock.Anything).Return(auth.ErrDuplicateEmail)
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(nil, errors.New("db down")).Once()

		_, err := r.ResolveOAuthIdentity(ctx, "sub-1", "ada@example.com")
		errutil.AssertErrorKind(t, err, "AUTH_PERSISTENCE_FAILED", auth.ErrPersistence)
		assert.NotErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("email owned by password account is a conflict", func(t *testing.T) {
		r, users, _ := newResolver(t)
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(nil, auth.ErrNotFound)
		users.On("InsertOAuthUser", ctx, mock.Anything).Return(auth.ErrDuplicateEmail)

		_, err := r.ResolveOAuthIdentity(ctx, "sub-1", "ada@example.com")
		errutil.AssertErrorKind(t, err, "AUTH_OAUTH_EMAIL_CONFLICT", auth.ErrDuplicateEmail)
	})

	t.Run("lookup failure", func(t *testing.T) {
		r, users, _ := newResolver(t)
		users.On("FindByOAuthSubject", ctx, "sub-1").Return(nil, errors.New("db down"))

		_, err := r.ResolveOAuthIdentity(ctx, "sub-1", "ada@example.com")
		errutil.AssertErrorKind(t, err, "AUTH_PERSISTENCE_FAILED", auth.ErrPersistence)
	})

	t.Run("empty subject", func(t *testing.T) {
		r, _, _ := newResolver(t)
		_, err := r.ResolveOAuthIdentity(ctx, "", "ada@example.com")
		errutil.AssertErrorKind(t, err, "AUTH_INVALID_SUBJECT", auth.ErrInvalidInput)
	})
}

func TestAuthenticatePassword(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{ID: 1, Email: "ada@example.com", PasswordHash: strPtr("$argon2id$real")}

	t.Run("correct password", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		users.On("FindByEmail", ctx, "ada@example.com").Return(user, nil)
		hasher.On("Verify", ctx, "pw", "$argon2id$real").Return(true, nil)

		got, err := r.AuthenticatePassword(ctx, "ada@example.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		users.On("FindByEmail", ctx, "ada@example.com").Return(user, nil)
		hasher.On("Verify", ctx, "bad", "$argon2id$real").Return(false, nil)

		_, err := r.AuthenticatePassword(ctx, "ada@example.com", "bad")
		errutil.AssertErrorKind(t, err, "AUTH_INVALID_CREDENTIALS", auth.ErrInvalidCredentials)
	})

	t.Run("unknown email still verifies against dummy hash", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		users.On("FindByEmail", ctx, "who@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", ctx, "pw", mock.AnythingOfType("string")).Return(false, nil)

		_, err := r.AuthenticatePassword(ctx, "who@example.com", "pw")
		errutil.AssertErrorKind(t, err, "AUTH_INVALID_CREDENTIALS", auth.ErrInvalidCredentials)
		hasher.AssertNumberOfCalls(t, "Verify", 1)
	})

	t.Run("oauth-only account is indistinguishable from unknown", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		oauthOnly := &auth.User{ID: 2, Email: "g@example.com", OAuthSubject: strPtr("sub")}
		users.On("FindByEmail", ctx, "g@example.com").Return(oauthOnly, nil)
		// Even a dummy "match" must not sign the user in.
		hasher.On("Verify", ctx, "pw", mock.AnythingOfType("string")).Return(true, nil)

		_, err := r.AuthenticatePassword(ctx, "g@example.com", "pw")
		errutil.AssertErrorKind(t, err, "AUTH_INVALID_CREDENTIALS", auth.ErrInvalidCredentials)
	})

	t.Run("corrupt stored hash is a verification error", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		users.On("FindByEmail", ctx, "ada@example.com").Return(user, nil)
		hasher.On("Verify", ctx, "pw", "$argon2id$real").Return(false, auth.ErrVerification)

		_, err := r.AuthenticatePassword(ctx, "ada@example.com", "pw")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrVerification)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("cancelled verification of unknown email is not invalid credentials", func(t *testing.T) {
		r, users, hasher := newResolver(t)
		users.On("FindByEmail", ctx, "who@example.com").Return(nil, auth.ErrNotFound)
		slotErr := fmt.Errorf("%w: %w", auth.ErrVerification, context.DeadlineExceeded)
		hasher.On("Verify", ctx, "pw", mock.AnythingOfType("string")).Return(false, slotErr)

		_, err := r.AuthenticatePassword(ctx, "who@example.com", "pw")
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("lookup failure is a persistence error", func(t *testing.T) {
		r, users, _ := newResolver(t)
		users.On("FindByEmail", ctx, "ada@example.com").Return(nil, errors.New("timeout"))

		_, err := r.AuthenticatePassword(ctx, "ada@example.com", "pw")
		errutil.AssertErrorKind(t, err, "AUTH_PERSISTENCE_FAILED", auth.ErrPersistence)
	})
}
