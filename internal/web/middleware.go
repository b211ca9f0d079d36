// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/logging"
	"github.com/sharegate/sharegate/pkg/errutil"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

type (
	sessionKey struct{}
	userKey    struct{}
)

// SessionFromContext returns the session attached by the session middleware.
func SessionFromContext(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return sess
}

// requestID accepts a sane inbound ID or mints a ULID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	//nolint:wrapcheck // ResponseWriter passthrough
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		_, route := s.mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func (s *Server) timeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cookieWriter emits the session cookie right before the response header,
// reflecting whatever state the handler left the session in.
type cookieWriter struct {
	http.ResponseWriter
	srv     *Server
	sess    *auth.Session
	written bool
}

func (c *cookieWriter) WriteHeader(code int) {
	c.writeCookie()
	c.ResponseWriter.WriteHeader(code)
}

func (c *cookieWriter) Write(b []byte) (int, error) {
	c.writeCookie()
	//nolint:wrapcheck // ResponseWriter passthrough
	return c.ResponseWriter.Write(b)
}

func (c *cookieWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

func (c *cookieWriter) writeCookie() {
	if c.written {
		return
	}
	c.written = true

	switch {
	case c.sess.State == auth.SessionDestroyed:
		http.SetCookie(c.ResponseWriter, c.srv.sessionCookie("", -1))
	case c.sess.Fresh:
		http.SetCookie(c.ResponseWriter, c.srv.sessionCookie(c.sess.Token, 0))
	}
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// session resumes the server-side session for the cookie token.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(s.cookieName); err == nil {
			token = c.Value
		}

		sess, err := s.auth.Resume(r.Context(), token)
		if err != nil {
			errutil.LogErrorContext(r.Context(), s.logger, "session unavailable", err)
			http.Error(w, "Service temporarily unavailable.", http.StatusServiceUnavailable)
			return
		}
		if sess.Fresh {
			s.metrics.RecordSession("created", 1)
		}

		cw := &cookieWriter{ResponseWriter: w, srv: s, sess: sess}
		next.ServeHTTP(cw, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// gate redirects unauthenticated requests for protected paths to /login.
// It never touches the session.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isProtected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		user, ok := s.auth.RequireAuthenticated(r.Context(), SessionFromContext(r.Context()))
		s.metrics.RecordGate(ok)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func (s *Server) isProtected(path string) bool {
	for _, g := range s.protected {
		if g.Match(path) {
			return true
		}
	}
	return false
}
