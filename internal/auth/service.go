// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sharegate/sharegate/pkg/errutil"
)

var tracer = otel.Tracer("sharegate/auth")

// Flash texts for successful transitions.
const (
	msgRegistered = "Your account has been created."
	msgLoggedIn   = "You are now signed in."
	msgLogoutFail = "We could not sign you out completely. Please try again."
)

// Service is the surface the HTTP layer calls. Every failure it returns has
// already produced a flash, a log entry, or both.
type Service struct {
	resolver *IdentityResolver
	sessions *SessionManager
	gate     *Gate
	logger   *slog.Logger
}

// NewAuthService creates a new Service using slog.Default for logging.
func NewAuthService(users UserRepository, sessions SessionStore, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, sessions SessionStore, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}

	resolver, err := NewIdentityResolver(users, hasher)
	if err != nil {
		return nil, err
	}
	manager, err := NewSessionManager(sessions)
	if err != nil {
		return nil, err
	}
	gate, err := NewGate(users, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		resolver: resolver,
		sessions: manager,
		gate:     gate,
		logger:   logger,
	}, nil
}

// Resume returns the session for a client token, creating an anonymous one
// when needed.
func (s *Service) Resume(ctx context.Context, token string) (*Session, error) {
	sess, err := s.sessions.Resume(ctx, token)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session resume failed", err)
		return nil, err
	}
	return sess, nil
}

// Register creates a password account and signs the session in.
func (s *Service) Register(ctx context.Context, sess *Session, email, password string) (_ *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer endSpan(span, &err)

	if err := s.requireAnonymous(ctx, sess); err != nil {
		return nil, err
	}

	user, err := s.resolver.RegisterWithPassword(ctx, email, password)
	if err != nil {
		s.fail(ctx, sess, "registration failed", err)
		return nil, err
	}

	if err := s.signIn(ctx, sess, user, msgRegistered); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies a password and signs the session in.
func (s *Service) Login(ctx context.Context, sess *Session, email, password string) (_ *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer endSpan(span, &err)

	if err := s.requireAnonymous(ctx, sess); err != nil {
		return nil, err
	}

	user, err := s.resolver.AuthenticatePassword(ctx, email, password)
	if err != nil {
		s.fail(ctx, sess, "login failed", err)
		return nil, err
	}

	if err := s.signIn(ctx, sess, user, msgLoggedIn); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "method", "password")
	return user, nil
}

// CompleteOAuthCallback resolves the provider identity and signs the session
// in. The provider flow has no "denied" branch; any error is a collaborator
// failure.
func (s *Service) CompleteOAuthCallback(ctx context.Context, sess *Session, subject, email string) (_ *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.oauth_callback")
	defer endSpan(span, &err)

	if err := s.requireAnonymous(ctx, sess); err != nil {
		return nil, err
	}

	user, err := s.resolver.ResolveOAuthIdentity(ctx, subject, email)
	if err != nil {
		s.fail(ctx, sess, "oauth identity resolution failed", err)
		return nil, err
	}

	if err := s.signIn(ctx, sess, user, msgLoggedIn); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "method", "oauth")
	return user, nil
}

// Logout destroys the session. A non-nil error means the store entry could
// not be removed; the failure is already logged and flashed, and the caller
// should still redirect. The cookie may only be cleared when
// sess.State is SessionDestroyed.
func (s *Service) Logout(ctx context.Context, sess *Session) (err error) {
	ctx, span := tracer.Start(ctx, "auth.logout")
	defer endSpan(span, &err)

	userID := sess.UserID
	if err := s.sessions.Destroy(ctx, sess); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "logout failed", err)
		s.Notify(ctx, sess, SeverityError, msgLogoutFail)
		return err
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", userID)
	return nil
}

// RequireAuthenticated runs the authorization gate. It never mutates the
// session.
func (s *Service) RequireAuthenticated(ctx context.Context, sess *Session) (*User, bool) {
	return s.gate.Principal(ctx, sess)
}

// Notify queues a flash on sess. Failures are logged, never returned.
func (s *Service) Notify(ctx context.Context, sess *Session, severity Severity, message string) {
	if err := s.sessions.Flash(ctx, sess, severity, message); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "flash not stored", err)
	}
}

// TakeFlashes returns the pending flashes of sess. Failures are logged and
// yield no flashes.
func (s *Service) TakeFlashes(ctx context.Context, sess *Session) []Flash {
	flashes, err := s.sessions.TakeFlashes(ctx, sess)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "flash read failed", err)
		return nil
	}
	return flashes
}

func (s *Service) requireAnonymous(ctx context.Context, sess *Session) error {
	if sess == nil {
		return oops.Code("AUTH_NO_SESSION").Wrap(ErrNotFound)
	}
	if sess.State != SessionAnonymous {
		err := oops.Code("AUTH_ALREADY_AUTHENTICATED").
			With("state", sess.State.String()).
			Wrap(ErrAlreadyAuthenticated)
		s.Notify(ctx, sess, SeverityError, UserMessage(err))
		return err
	}
	return nil
}

// signIn performs the regenerate-then-bind transition and queues the
// outcome on whichever session is current afterwards.
func (s *Service) signIn(ctx context.Context, sess *Session, user *User, success string) error {
	if err := s.sessions.Authenticate(ctx, sess, user.ID); err != nil {
		s.fail(ctx, sess, "session transition failed", err)
		return err
	}
	s.Notify(ctx, sess, SeveritySuccess, success)
	return nil
}

// fail logs unexpected failures and flashes the user-facing message.
// User-correctable errors are not logged at error level.
func (s *Service) fail(ctx context.Context, sess *Session, msg string, err error) {
	if userCorrectable(err) {
		s.logger.InfoContext(ctx, msg, "reason", UserMessage(err))
	} else {
		errutil.LogErrorContext(ctx, s.logger, msg, err)
	}
	s.Notify(ctx, sess, SeverityError, UserMessage(err))
}

func userCorrectable(err error) bool {
	return errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidInput)
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
		span.SetAttributes(attribute.String("auth.error_kind", errorKind(*err)))
	}
	span.End()
}

// errorKind names the error kind for span attributes and metrics.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrHashing):
		return "hashing"
	case errors.Is(err, ErrVerification):
		return "verification"
	case errors.Is(err, ErrSessionRegeneration):
		return "session_regeneration"
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "already_authenticated"
	default:
		return "persistence"
	}
}

// ErrorKind is the exported form of errorKind for metric labels.
func ErrorKind(err error) string {
	return errorKind(err)
}
