// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sharegate/sharegate/internal/config"
)

// NewPruneSessionsCmd creates the prune-sessions subcommand.
func NewPruneSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sessions",
		Long: `Delete sessions idle for longer than session.ttl. Only the postgres
backend keeps expired rows; redis expires keys on its own.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runPruneSessions(commandContext(cmd), cfg, cmd, openStores)
		},
	}
	cmd.Flags().String("session-backend", "", "session store: postgres, redis or memory")
	cmd.Flags().Duration("session-ttl", 0, "idle session lifetime")
	return cmd
}

func runPruneSessions(
	ctx context.Context,
	cfg *config.Config,
	cmd *cobra.Command,
	open func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error),
) error {
	if cfg.Session.Backend != config.BackendMemory && cfg.Secrets.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "DATABASE_URL").
			Errorf("DATABASE_URL environment variable is required")
	}

	logger := slog.Default()
	stores, err := open(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open stores").Wrap(err)
	}
	if stores.Close != nil {
		defer stores.Close()
	}

	pruner, ok := sessionPruner(stores.Sessions)
	if !ok {
		cmd.Println("Session backend does not need pruning")
		return nil
	}

	n, err := pruner.DeleteExpired(ctx)
	if err != nil {
		return oops.With("operation", "prune sessions").Wrap(err)
	}
	logger.InfoContext(ctx, "expired sessions pruned", "count", n, "backend", cfg.Session.Backend)
	cmd.Printf("Pruned %d expired session(s)\n", n)
	return nil
}
