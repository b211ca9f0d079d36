// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/auth/memory"
	"github.com/sharegate/sharegate/internal/auth/postgres"
	authredis "github.com/sharegate/sharegate/internal/auth/redis"
	"github.com/sharegate/sharegate/internal/config"
	"github.com/sharegate/sharegate/internal/store"
)

var (
	_ ExpiredSessionPruner = (*postgres.SessionStore)(nil)
	_ ExpiredSessionPruner = (*authredis.SessionStore)(nil)
	_ ExpiredSessionPruner = (*memory.SessionStore)(nil)
)

// openStores connects the configured backend. Users always live in
// PostgreSQL except with the memory backend, which keeps everything in
// process and is meant for local development.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	if cfg.Session.Backend == config.BackendMemory {
		logger.WarnContext(ctx, "using in-memory stores; all users and sessions are lost on restart")
		return &Stores{
			Users:    memory.NewUserRepository(),
			Sessions: memory.NewSessionStore(cfg.Session.TTL),
		}, nil
	}

	pool, err := store.Connect(ctx, cfg.Secrets.DatabaseURL, store.ConnectOptions{Logger: logger})
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "connected to database")

	stores := &Stores{
		Users: postgres.NewUserRepository(pool),
		Check: pool.Ping,
		Close: pool.Close,
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		stores.Sessions = postgres.NewSessionStore(pool, cfg.Session.TTL)
	case config.BackendRedis:
		client, err := authredis.Connect(ctx, authredis.ClientOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Secrets.RedisPassword,
			DB:       cfg.Redis.DB,
			Logger:   logger,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.InfoContext(ctx, "connected to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

		stores.Sessions = authredis.NewSessionStore(client, cfg.Session.TTL)
		stores.Check = func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return oops.Code("DB_UNHEALTHY").Wrap(err)
			}
			return authredis.Healthcheck(ctx, client)
		}
		stores.Close = func() {
			if err := client.Close(); err != nil {
				logger.Warn("error closing redis client", "error", err)
			}
			pool.Close()
		}
	default:
		pool.Close()
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "session.backend").
			Errorf("unknown session backend %q", cfg.Session.Backend)
	}
	return stores, nil
}

// sessionPruner returns the sweep method of sessions, if it has one.
func sessionPruner(sessions auth.SessionStore) (ExpiredSessionPruner, bool) {
	p, ok := sessions.(ExpiredSessionPruner)
	return p, ok
}
