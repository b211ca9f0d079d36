// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sharegate/sharegate/internal/config"
	"github.com/sharegate/sharegate/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the Sharegate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sharegate",
		Short: "Sharegate - session-based sign-in gateway",
		Long: `Sharegate is a session-based authentication gateway. It signs users in
with a password or with Google, keeps server-side sessions in PostgreSQL
or Redis, and gates the protected share pages.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/sharegate/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with secrets (default: XDG_CONFIG_HOME/sharegate/.env)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(NewPruneSessionsCmd())

	return cmd
}

// loadConfig merges defaults, the config file and the flags of cmd. The
// XDG config file is optional; an explicit --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := config.LoadOptions{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Flags:      cmd.Flags(),
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = xdg.ConfigFile()
		opts.Optional = true
	}
	if opts.EnvFile == "" {
		opts.EnvFile = xdg.EnvFile()
	}
	return config.Load(opts)
}

// commandContext returns the context of cmd, or Background when cmd was not
// started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
