// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package oauth

import "errors"

// Sentinel errors for the provider flow.
var (
	// ErrInvalidState means the callback state did not match the signed
	// state cookie, or the cookie was missing or expired.
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrExchange means the authorization code could not be exchanged.
	ErrExchange = errors.New("oauth code exchange failed")

	// ErrUserInfo means the provider identity could not be read.
	ErrUserInfo = errors.New("oauth userinfo failed")

	// ErrProviderDenied means the provider redirected back with an error.
	ErrProviderDenied = errors.New("oauth provider returned an error")
)
