// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package redis

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ClientOptions configures Connect.
type ClientOptions struct {
	Addr     string
	Password string
	DB       int
	// Attempts is the total number of PING attempts. Zero means 5.
	Attempts uint64
	// Backoff is the initial retry delay. Zero means 200ms.
	Backoff time.Duration
	Logger  *slog.Logger
}

// Connect opens a client and waits until the server answers PING.
func Connect(ctx context.Context, opts ClientOptions) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, oops.Code("REDIS_CONFIG_INVALID").Errorf("redis address is required")
	}
	if opts.DB < 0 {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("db", opts.DB).Errorf("redis db cannot be negative")
	}
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = 5
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	try := 0
	err := retry.Do(ctx, retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff)), func(ctx context.Context) error {
		try++
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WarnContext(ctx, "redis not ready", "addr", opts.Addr, "attempt", try, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", opts.Addr).
			With("attempts", attempts).
			Wrap(err)
	}
	return client, nil
}

// Healthcheck reports whether the server answers PING.
func Healthcheck(ctx context.Context, client goredis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_UNHEALTHY").Wrap(err)
	}
	return nil
}
