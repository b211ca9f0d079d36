// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package web

import (
	"net/http"

	"github.com/samber/oops"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/oauth"
	"github.com/sharegate/sharegate/pkg/errutil"
)

const (
	stateCookieName = "sharegate_oauth_state"
	stateCookiePath = "/auth/google"

	msgOAuthFailed    = "Google sign-in failed. Please try again."
	msgOAuthCancelled = "Google sign-in was cancelled."
)

func (s *Server) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     stateCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// handleGoogleStart sends the visitor to the consent screen with a fresh
// state nonce bound to a signed cookie.
func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	sess := SessionFromContext(ctx)
	if sess.IsAuthenticated() {
		http.Redirect(w, r, landingPath, http.StatusSeeOther)
		return
	}

	nonce, signed, err := s.stateSigner.Issue()
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "oauth state not issued", err)
		s.auth.Notify(ctx, sess, auth.SeverityError, msgOAuthFailed)
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	http.SetCookie(w, s.stateCookie(signed, int(oauth.DefaultStateTTL.Seconds())))
	http.Redirect(w, r, s.oauth.AuthCodeURL(nonce), http.StatusFound)
}

// handleGoogleCallback checks state, exchanges the code and signs the
// session in. Every failure lands back on the login form with a flash.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	sess := SessionFromContext(ctx)

	var signed string
	if c, err := r.Cookie(stateCookieName); err == nil {
		signed = c.Value
	}
	http.SetCookie(w, s.stateCookie("", -1))

	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		s.logger.InfoContext(ctx, "oauth provider returned error", "error", providerErr)
		s.recordAuth("oauth", oops.Code("OAUTH_PROVIDER_ERROR").Wrap(oauth.ErrProviderDenied))
		s.auth.Notify(ctx, sess, auth.SeverityError, msgOAuthCancelled)
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	if err := s.stateSigner.Verify(signed, q.Get("state")); err != nil {
		s.oauthFailed(w, r, sess, "oauth state rejected", err)
		return
	}

	identity, err := s.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		s.oauthFailed(w, r, sess, "oauth exchange failed", err)
		return
	}

	_, err = s.auth.CompleteOAuthCallback(ctx, sess, identity.Subject, identity.Email)
	s.recordAuth("oauth", err)
	if err != nil {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	s.metrics.RecordSession("regenerated", 1)
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}

func (s *Server) oauthFailed(w http.ResponseWriter, r *http.Request, sess *auth.Session, msg string, err error) {
	ctx := r.Context()
	errutil.LogErrorContext(ctx, s.logger, msg, err)
	s.recordAuth("oauth", err)
	s.auth.Notify(ctx, sess, auth.SeverityError, msgOAuthFailed)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}
