// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/oauth"
)

// maxFormBytes bounds login and registration bodies.
const maxFormBytes = 64 << 10

// Post-transition redirect targets.
const (
	landingPath = "/share"
	loginPath   = "/login"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	user, _ := s.auth.RequireAuthenticated(r.Context(), SessionFromContext(r.Context()))
	s.render(w, r, "home.html", pageData{Title: "Home", User: user})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if SessionFromContext(r.Context()).IsAuthenticated() {
		http.Redirect(w, r, landingPath, http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", pageData{Title: "Sign in"})
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if SessionFromContext(r.Context()).IsAuthenticated() {
		http.Redirect(w, r, landingPath, http.StatusSeeOther)
		return
	}
	s.render(w, r, "register.html", pageData{Title: "Register"})
}

// handleLogin and handleRegister redirect back to their form on failure;
// the service has already queued the flash that explains why.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email, password, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	_, err := s.auth.Login(r.Context(), SessionFromContext(r.Context()), email, password)
	s.recordAuth("login", err)
	if err != nil {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	s.metrics.RecordSession("regenerated", 1)
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	email, password, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	_, err := s.auth.Register(r.Context(), SessionFromContext(r.Context()), email, password)
	s.recordAuth("register", err)
	if err != nil {
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}
	s.metrics.RecordSession("regenerated", 1)
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}

// handleLogout always redirects home. The cookie is cleared only when the
// store confirmed the session is gone.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	err := s.auth.Logout(r.Context(), sess)
	s.recordAuth("logout", err)
	if sess.State == auth.SessionDestroyed {
		s.metrics.RecordSession("destroyed", 1)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(userKey{}).(*auth.User)
	if !ok {
		user, ok = s.auth.RequireAuthenticated(r.Context(), SessionFromContext(r.Context()))
		if !ok {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
	}
	s.render(w, r, "share.html", pageData{Title: "Shared", User: user})
}

func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (email, password string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request.", http.StatusBadRequest)
		return "", "", false
	}
	return r.PostForm.Get("email"), r.PostForm.Get("password"), true
}

func (s *Server) recordAuth(flow string, err error) {
	s.metrics.RecordAuth(flow, resultLabel(err))
}

// resultLabel names the outcome of an auth flow for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, oauth.ErrProviderDenied):
		return "provider_denied"
	case errors.Is(err, oauth.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, oauth.ErrExchange), errors.Is(err, oauth.ErrUserInfo):
		return "provider_error"
	default:
		return auth.ErrorKind(err)
	}
}
