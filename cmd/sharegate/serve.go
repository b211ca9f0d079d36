// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package main

import (
	"context"
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/hkdf"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/config"
	"github.com/sharegate/sharegate/internal/control"
	"github.com/sharegate/sharegate/internal/logging"
	"github.com/sharegate/sharegate/internal/oauth"
	"github.com/sharegate/sharegate/internal/observability"
	"github.com/sharegate/sharegate/internal/web"
)

const (
	serviceName     = "sharegate"
	shutdownTimeout = 10 * time.Second
	readinessWait   = time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the public web server together with the metrics endpoint and the
gRPC health control server. Secrets are read from SHAREGATE_SECRET,
DATABASE_URL, REDIS_PASSWORD and GOOGLE_CLIENT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(commandContext(cmd), cfg, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoresFactory == nil {
		deps.StoresFactory = openStores
	}
	if deps.ControlServerFactory == nil {
		deps.ControlServerFactory = func(component string, check control.CheckFunc, logger *slog.Logger) (ControlServer, error) {
			return control.NewGRPCServer(component, check, logger)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, logger)
		}
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(opts web.Options) (WebServer, error) {
			return web.NewServer(opts)
		}
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, logging.Options{
		Format: cfg.LogFormat,
		Level:  level,
		Writer: cmd.ErrOrStderr(),
	})

	logger.InfoContext(ctx, "starting sharegate",
		"http_addr", cfg.HTTP.Addr,
		"session_backend", cfg.Session.Backend,
		"oauth_enabled", cfg.OAuthEnabled(),
	)

	stores, err := deps.StoresFactory(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open stores").Wrap(err)
	}
	if stores.Close != nil {
		defer stores.Close()
	}

	secret := []byte(cfg.Secrets.AppSecret)
	hasher, err := auth.NewArgon2idHasher(secret, cfg.Hasher.Concurrency)
	if err != nil {
		return err
	}
	svc, err := auth.NewAuthServiceWithLogger(stores.Users, stores.Sessions, hasher, logger)
	if err != nil {
		return err
	}

	webOpts := web.Options{
		Auth:              svc,
		Logger:            logger,
		CookieName:        cfg.HTTP.CookieName,
		SecureCookies:     cfg.HTTP.SecureCookies,
		ProtectedPaths:    cfg.HTTP.ProtectedPaths,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		RequestTimeout:    cfg.HTTP.RequestTimeout,
	}
	if cfg.OAuthEnabled() {
		provider, signer, err := newGoogleLogin(cfg, secret)
		if err != nil {
			return err
		}
		webOpts.OAuth = provider
		webOpts.StateSigner = signer
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	}

	controlServer, err := deps.ControlServerFactory(serviceName, stores.Check, logger)
	if err != nil {
		return oops.With("operation", "create control server").Wrap(err)
	}
	controlErrCh, err := controlServer.Start(cfg.ControlAddr)
	if err != nil {
		return oops.With("operation", "start control server").Wrap(err)
	}
	defer func() {
		sctx, scancel := shutdownCtx()
		defer scancel()
		if err := controlServer.Stop(sctx); err != nil {
			logger.Warn("error stopping control server", "error", err)
		}
	}()
	go monitorServerErrors(ctx, cancel, controlErrCh, "control-grpc")
	logger.InfoContext(ctx, "control server started", "addr", cfg.ControlAddr)

	if cfg.MetricsAddr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.MetricsAddr, readiness(stores.Check), logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer func() {
			sctx, scancel := shutdownCtx()
			defer scancel()
			if err := obsServer.Stop(sctx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		webOpts.Metrics = obsServer.Metrics()
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	webServer, err := deps.WebServerFactory(webOpts)
	if err != nil {
		return oops.With("operation", "create web server").Wrap(err)
	}
	webErrCh, err := webServer.Start(cfg.HTTP.Addr)
	if err != nil {
		return oops.With("operation", "start web server").Wrap(err)
	}
	defer func() {
		sctx, scancel := shutdownCtx()
		defer scancel()
		if err := webServer.Stop(sctx); err != nil {
			logger.Warn("error stopping web server", "error", err)
		}
	}()
	go monitorServerErrors(ctx, cancel, webErrCh, "web")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Sharegate started on", webServer.Addr())
	logger.InfoContext(ctx, "sharegate ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	return nil
}

// newGoogleLogin builds the Google provider and the state signer. The
// state key is derived from the application secret so the pepper never
// signs anything.
func newGoogleLogin(cfg *config.Config, secret []byte) (*oauth.Google, *oauth.StateSigner, error) {
	provider, err := oauth.NewGoogle(oauth.GoogleConfig{
		ClientID:     cfg.OAuth.Google.ClientID,
		ClientSecret: cfg.Secrets.GoogleClientSecret,
		RedirectURL:  cfg.OAuth.Google.RedirectURL,
	})
	if err != nil {
		return nil, nil, err
	}
	key, err := deriveKey(secret, "sharegate oauth state")
	if err != nil {
		return nil, nil, err
	}
	signer, err := oauth.NewStateSigner(key, oauth.DefaultStateTTL)
	if err != nil {
		return nil, nil, err
	}
	return provider, signer, nil
}

// deriveKey expands secret into a 32-byte key bound to info.
func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, oops.Code("KEY_DERIVATION_FAILED").With("info", info).Wrap(err)
	}
	return key, nil
}

// readiness adapts a store health check to the probe endpoint.
func readiness(check control.CheckFunc) observability.ReadinessChecker {
	if check == nil {
		return func() bool { return true }
	}
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), readinessWait)
		defer cancel()
		return check(ctx) == nil
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
