// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package web serves the public HTTP surface: the session cookie, the
// protected-route gate, the login, registration and logout forms, and the
// Google callback.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/oauth"
	"github.com/sharegate/sharegate/internal/observability"
)

// AuthService is the part of auth.Service the handlers call.
type AuthService interface {
	Resume(ctx context.Context, token string) (*auth.Session, error)
	Register(ctx context.Context, sess *auth.Session, email, password string) (*auth.User, error)
	Login(ctx context.Context, sess *auth.Session, email, password string) (*auth.User, error)
	CompleteOAuthCallback(ctx context.Context, sess *auth.Session, subject, email string) (*auth.User, error)
	Logout(ctx context.Context, sess *auth.Session) error
	RequireAuthenticated(ctx context.Context, sess *auth.Session) (*auth.User, bool)
	Notify(ctx context.Context, sess *auth.Session, severity auth.Severity, message string)
	TakeFlashes(ctx context.Context, sess *auth.Session) []auth.Flash
}

// OAuthProvider runs the provider side of federated login.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Identity, error)
}

// Compile-time interface checks.
var (
	_ AuthService   = (*auth.Service)(nil)
	_ OAuthProvider = (*oauth.Google)(nil)
)

// Options configures a Server.
type Options struct {
	Auth AuthService
	// OAuth and StateSigner are both nil when federated login is disabled.
	OAuth       OAuthProvider
	StateSigner *oauth.StateSigner
	Metrics     *observability.Metrics
	Logger      *slog.Logger

	CookieName        string
	SecureCookies     bool
	ProtectedPaths    []string
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
}

// Server is the public HTTP server.
type Server struct {
	auth        AuthService
	oauth       OAuthProvider
	stateSigner *oauth.StateSigner
	metrics     *observability.Metrics
	logger      *slog.Logger
	pages       *pages

	cookieName        string
	secureCookies     bool
	protected         []glob.Glob
	readHeaderTimeout time.Duration
	requestTimeout    time.Duration

	mux        *http.ServeMux
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer builds the router and middleware chain.
func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	}
	if (opts.OAuth == nil) != (opts.StateSigner == nil) {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("oauth provider and state signer must be set together")
	}
	if opts.CookieName == "" {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("cookie name is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	protected := make([]glob.Glob, 0, len(opts.ProtectedPaths))
	for _, pattern := range opts.ProtectedPaths {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, oops.Code("WEB_INVALID_CONFIG").With("pattern", pattern).Wrap(err)
		}
		protected = append(protected, g)
	}

	pages, err := loadPages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		auth:              opts.Auth,
		oauth:             opts.OAuth,
		stateSigner:       opts.StateSigner,
		metrics:           opts.Metrics,
		logger:            opts.Logger,
		pages:             pages,
		cookieName:        opts.CookieName,
		secureCookies:     opts.SecureCookies,
		protected:         protected,
		readHeaderTimeout: opts.ReadHeaderTimeout,
		requestTimeout:    opts.RequestTimeout,
	}
	s.mux = s.routes()
	s.handler = otelhttp.NewHandler(
		s.requestID(s.accessLog(s.timeout(s.session(s.gate(s.mux))))),
		"sharegate",
	)
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterForm)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /share", s.handleShare)
	mux.HandleFunc("GET /auth/google", s.handleGoogleStart)
	mux.HandleFunc("GET /auth/google/callback", s.handleGoogleCallback)
	return mux
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving on addr. The returned channel receives a serve error
// after startup, and is closed when the server stops.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the listen address, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
