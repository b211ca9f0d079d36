// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// Argon2Params configures the argon2id key derivation.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultArgon2Params returns the production parameters: 64 MiB, 3 passes,
// a single lane.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    3,
		Memory:  64 * 1024,
		Threads: 1,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// DefaultHashConcurrency bounds how many derivations may run at once.
const DefaultHashConcurrency = 4

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id keyed with an
// application secret. The secret never appears in the stored hash, so a
// leaked users table cannot be attacked offline without it.
type Argon2idHasher struct {
	secret []byte
	params Argon2Params
	slots  *semaphore.Weighted
}

// NewArgon2idHasher creates a hasher with the default parameters.
func NewArgon2idHasher(secret []byte, concurrency int) (*Argon2idHasher, error) {
	return NewArgon2idHasherWithParams(secret, concurrency, DefaultArgon2Params())
}

// NewArgon2idHasherWithParams creates a hasher with explicit parameters.
func NewArgon2idHasherWithParams(secret []byte, concurrency int, params Argon2Params) (*Argon2idHasher, error) {
	if len(secret) == 0 {
		return nil, oops.Code("AUTH_SECRET_REQUIRED").Errorf("application secret is required")
	}
	if concurrency <= 0 {
		concurrency = DefaultHashConcurrency
	}
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 || params.SaltLen <= 0 || params.KeyLen == 0 {
		return nil, oops.Code("AUTH_INVALID_PARAMS").
			With("params", params).
			Errorf("argon2 parameters must be positive")
	}
	return &Argon2idHasher{
		secret: append([]byte(nil), secret...),
		params: params,
		slots:  semaphore.NewWeighted(int64(concurrency)),
	}, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrapf(ErrInvalidInput, "password cannot be empty")
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_HASHING_FAILED").
			With("operation", "generate salt").
			Wrap(fmt.Errorf("%w: %w", ErrHashing, err))
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", oops.Code("AUTH_HASHING_FAILED").
			With("operation", "acquire hash slot").
			Wrap(fmt.Errorf("%w: %w", ErrHashing, err))
	}
	key := argon2.IDKey(h.pepper(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	h.slots.Release(1)

	// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "acquire hash slot").
			Wrap(fmt.Errorf("%w: %w", ErrVerification, err))
	}
	computed := argon2.IDKey(h.pepper(password), parsed.salt, parsed.time, parsed.memory, parsed.threads, uint32(len(parsed.key)))
	h.slots.Release(1)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

func (h *Argon2idHasher) pepper(password string) []byte {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

// Upper bounds accepted when parsing a stored hash.
const (
	maxMemory = 1024 * 1024 // 1 GiB in KiB
	maxTime   = 64
)

type phcHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func invalidHash(format string, args ...any) error {
	return oops.Code("AUTH_INVALID_HASH").Wrap(fmt.Errorf("%w: "+format, append([]any{ErrVerification}, args...)...))
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, invalidHash("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, invalidHash("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, invalidHash("bad version segment %q", parts[2])
	}
	if version != argon2.Version {
		return nil, invalidHash("unsupported argon2 version %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, invalidHash("bad parameter segment %q", parts[3])
	}
	// Threads must fit in uint8 and memory must satisfy argon2's 8*p minimum.
	// The upper bounds reject corrupt rows that would exhaust the host.
	if threads == 0 || threads > 255 || time == 0 || time > maxTime || memory < 8*threads || memory > maxMemory {
		return nil, invalidHash("invalid parameters m=%d,t=%d,p=%d", memory, time, threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, invalidHash("bad salt encoding")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, invalidHash("bad key encoding")
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, invalidHash("invalid hash key length: %d", len(key))
	}

	return &phcHash{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}
