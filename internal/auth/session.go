// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes  = 32             // 32 bytes = 64 hex chars
	DefaultSessionTTL  = 24 * time.Hour // idle expiry
	maxFlashesPerTaken = 32
)

// SessionState is the lifecycle state of a session.
type SessionState int

// Session states. Destroyed is terminal.
const (
	SessionAnonymous SessionState = iota
	SessionAuthenticated
	SessionDestroyed
)

func (s SessionState) String() string {
	switch s {
	case SessionAnonymous:
		return "anonymous"
	case SessionAuthenticated:
		return "authenticated"
	case SessionDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Session is the per-request view of a server-side session. It is built once
// per request by SessionManager.Resume and passed by pointer to the
// components that act on it.
type Session struct {
	// Token is the plaintext value held in the client cookie.
	Token string
	State SessionState
	// UserID is the bound principal; zero unless State is SessionAuthenticated.
	UserID int64
	// Fresh is true when the token was issued during this request and the
	// host must send it to the client.
	Fresh bool
}

// IsAuthenticated reports whether the session is bound to a principal.
// It does not check that the principal still exists; see Gate.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.State == SessionAuthenticated && s.UserID != 0
}

// Severity classifies a flash message.
type Severity string

// Flash severities.
const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityError || s == SeveritySuccess
}

// Flash is a one-shot notification read by the next rendered response.
type Flash struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SessionStore is the session persistence collaborator. It is the only
// reader and writer of the token-to-principal binding. Implementations must
// be safe for concurrent use and must report a missing, expired or destroyed
// session as ErrNotFound.
type SessionStore interface {
	// Create issues a new anonymous session and returns its token.
	Create(ctx context.Context) (string, error)

	// Regenerate issues a new anonymous session and invalidates oldToken in the
	// same atomic step. Principal and flashes of the old session are dropped.
	Regenerate(ctx context.Context, oldToken string) (string, error)

	// BindPrincipal binds userID to the session identified by token.
	BindPrincipal(ctx context.Context, token string, userID int64) error

	// GetPrincipal returns the bound user ID, or nil for an anonymous session.
	GetPrincipal(ctx context.Context, token string) (*int64, error)

	// Destroy deletes the session identified by token.
	Destroy(ctx context.Context, token string) error

	// SetFlash appends a flash message to the session.
	SetFlash(ctx context.Context, token string, severity Severity, message string) error

	// TakeFlash returns and clears all pending flash messages.
	TakeFlash(ctx context.Context, token string) ([]Flash, error)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is what stores key on.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ValidTokenFormat reports whether token looks like one issued by
// GenerateSessionToken. Stores use it to skip lookups for garbage cookies.
func ValidTokenFormat(token string) bool {
	if len(token) != SessionTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// LimitFlashes caps the number of flashes handed to a single render.
func LimitFlashes(flashes []Flash) []Flash {
	if len(flashes) > maxFlashesPerTaken {
		return flashes[len(flashes)-maxFlashesPerTaken:]
	}
	return flashes
}
