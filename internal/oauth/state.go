// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

const (
	// DefaultStateTTL bounds the time between redirect and callback.
	DefaultStateTTL = 10 * time.Minute
	stateIssuer     = "sharegate"
	nonceBytes      = 16
)

// stateClaims is the payload of the state cookie.
type stateClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// StateSigner issues and checks the CSRF state of an OAuth round trip.
// The nonce travels to the provider as the state parameter; the signed
// token holding it travels in a cookie.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a new StateSigner. A non-positive ttl selects
// DefaultStateTTL.
func NewStateSigner(secret []byte, ttl time.Duration) (*StateSigner, error) {
	if len(secret) == 0 {
		return nil, oops.Code("OAUTH_INVALID_CONFIG").Errorf("state secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue returns a fresh nonce and the signed token carrying it.
func (s *StateSigner) Issue() (nonce, signed string, err error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", oops.Code("OAUTH_STATE_FAILED").With("operation", "generate nonce").Wrap(err)
	}
	nonce = hex.EncodeToString(buf)

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Nonce: nonce,
	})
	signed, err = token.SignedString(s.secret)
	if err != nil {
		return "", "", oops.Code("OAUTH_STATE_FAILED").With("operation", "sign state").Wrap(err)
	}
	return nonce, signed, nil
}

// Verify checks that signed is a live token issued by s for nonce.
func (s *StateSigner) Verify(signed, nonce string) error {
	if signed == "" || nonce == "" {
		return oops.Code("OAUTH_STATE_INVALID").Wrapf(ErrInvalidState, "missing state")
	}

	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return oops.Code("OAUTH_STATE_INVALID").Wrapf(ErrInvalidState, "%s", err.Error())
	}
	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return oops.Code("OAUTH_STATE_INVALID").Wrapf(ErrInvalidState, "state mismatch")
	}
	return nil
}
