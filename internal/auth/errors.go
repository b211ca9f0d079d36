// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error kinds surfaced by the authentication core. They are wrapped in oops
// errors carrying a code and context; match them with errors.Is.
var (
	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateSubject is returned when a user with the same OAuth subject already exists.
	ErrDuplicateSubject = errors.New("oauth subject already linked")

	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrHashing is returned when a password hash cannot be derived.
	ErrHashing = errors.New("password hashing failed")

	// ErrVerification is returned when a stored hash is malformed.
	ErrVerification = errors.New("password verification failed")

	// ErrSessionRegeneration is returned when a session could not be regenerated
	// during an authentication transition. The principal is never bound.
	ErrSessionRegeneration = errors.New("session regeneration failed")

	// ErrPersistence is returned for any other user or session store failure.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidInput is returned when an email or password fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyAuthenticated is returned when a login flow runs on a session
	// that is already bound to a principal.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
)

// UserMessage maps an error to the text shown to the visitor in a flash.
// Driver and store details never leak through it.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return "An account with that email already exists."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrSessionRegeneration):
		return "We could not start your session. Please try again."
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "You are already signed in."
	case errors.Is(err, ErrInvalidInput):
		return "Please enter a valid email address and password."
	default:
		return "Something went wrong. Please try again."
	}
}
