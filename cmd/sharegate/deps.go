// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/config"
	"github.com/sharegate/sharegate/internal/control"
	"github.com/sharegate/sharegate/internal/observability"
	"github.com/sharegate/sharegate/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoresFactory opens the user and session stores for the configured
	// backend.
	// Default: openStores
	StoresFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error)

	// ControlServerFactory creates a control gRPC server.
	// Default: control.NewGRPCServer
	ControlServerFactory func(component string, check control.CheckFunc, logger *slog.Logger) (ControlServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// WebServerFactory creates the public web server.
	// Default: web.NewServer
	WebServerFactory func(opts web.Options) (WebServer, error)
}

// Stores bundles the persistence collaborators of a running process.
type Stores struct {
	Users    auth.UserRepository
	Sessions auth.SessionStore
	// Check reports whether the backing services are reachable. Nil means
	// always healthy.
	Check control.CheckFunc
	// Close releases connections. May be nil.
	Close func()
}

// ExpiredSessionPruner is implemented by session stores that need an
// explicit sweep of expired rows.
type ExpiredSessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ControlServer interface wraps the methods used from control.GRPCServer.
type ControlServer interface {
	Start(addr string) (<-chan error, error)
	Stop(ctx context.Context) error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer interface wraps the methods used from web.Server.
type WebServer interface {
	Start(addr string) (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Compile-time interface checks.
var (
	_ ControlServer       = (*control.GRPCServer)(nil)
	_ ObservabilityServer = (*observability.Server)(nil)
	_ WebServer           = (*web.Server)(nil)
)
