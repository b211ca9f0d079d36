// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package auth provides the authentication core of Sharegate.
//
// # Domain Types
//
// Users should be created using their constructors:
//   - NewPasswordUser - creates a User with validated email and password hash
//   - NewOAuthUser - creates a User with validated email and provider subject
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Components
//
//   - Argon2idHasher - keyed argon2id hashing, bounded by a semaphore
//   - IdentityResolver - registration, password login, OAuth upsert-by-subject
//   - SessionManager - the Anonymous -> Authenticated -> Destroyed state machine
//   - Gate - authorization check that fails closed when the principal is gone
//   - Service - facade used by the HTTP layer; turns failures into flashes
//
// A session is always regenerated before a principal is bound to it. If the
// regeneration fails, the principal is not bound and the caller sees
// ErrSessionRegeneration.
//
// Errors carry an oops code; match the kind with errors.Is against the
// sentinels in errors.go.
package auth
