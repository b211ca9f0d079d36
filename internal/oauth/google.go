// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	defaultHTTPTimeout = 10 * time.Second
	maxUserInfoBytes   = 1 << 20
)

// Identity is the provider assertion handed to the identity resolver.
type Identity struct {
	Subject string
	Email   string
}

// GoogleConfig configures the Google provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and UserInfoURL default to Google's. Tests override them.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
}

// Google runs the authorization code flow against Google.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewGoogle creates a new Google provider.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" {
		return nil, oops.Code("OAUTH_INVALID_CONFIG").Errorf("google client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, oops.Code("OAUTH_INVALID_CONFIG").Errorf("google client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, oops.Code("OAUTH_INVALID_CONFIG").Errorf("google redirect url is required")
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.Google
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Google{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email"},
		},
		userInfoURL: userInfoURL,
		client:      client,
	}, nil
}

// AuthCodeURL returns the provider consent URL carrying state.
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for the provider identity.
func (g *Google) Exchange(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, oops.Code("OAUTH_EXCHANGE_FAILED").Wrapf(ErrExchange, "missing authorization code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, oops.Code("OAUTH_EXCHANGE_FAILED").
			With("operation", "exchange code").
			Wrap(fmt.Errorf("%w: %w", ErrExchange, err))
	}

	return g.userInfo(ctx, g.config.Client(ctx, token))
}

type userInfoResponse struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (g *Google) userInfo(ctx context.Context, client *http.Client) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return Identity{}, oops.Code("OAUTH_USERINFO_FAILED").
			With("operation", "build request").
			Wrap(fmt.Errorf("%w: %w", ErrUserInfo, err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, oops.Code("OAUTH_USERINFO_FAILED").
			With("operation", "fetch userinfo").
			Wrap(fmt.Errorf("%w: %w", ErrUserInfo, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, oops.Code("OAUTH_USERINFO_FAILED").
			With("status", resp.StatusCode).
			Wrapf(ErrUserInfo, "unexpected userinfo status")
	}

	var info userInfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return Identity{}, oops.Code("OAUTH_USERINFO_FAILED").
			With("operation", "decode userinfo").
			Wrap(fmt.Errorf("%w: %w", ErrUserInfo, err))
	}
	if info.Subject == "" {
		return Identity{}, oops.Code("OAUTH_USERINFO_FAILED").Wrapf(ErrUserInfo, "userinfo has no subject")
	}
	if info.Email == "" || !info.EmailVerified {
		return Identity{}, oops.Code("OAUTH_EMAIL_UNVERIFIED").
			With("subject", info.Subject).
			Wrapf(ErrUserInfo, "userinfo has no verified email")
	}

	return Identity{Subject: info.Subject, Email: info.Email}, nil
}
