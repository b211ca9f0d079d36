// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package web_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/auth/memory"
	"github.com/sharegate/sharegate/internal/logging"
	"github.com/sharegate/sharegate/internal/oauth"
	"github.com/sharegate/sharegate/internal/observability"
	"github.com/sharegate/sharegate/internal/web"
)

const cookieName = "sharegate_session"

var fastParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// failingDestroyStore fails Destroy while fail is set.
type failingDestroyStore struct {
	*memory.SessionStore
	fail bool
}

func (s *failingDestroyStore) Destroy(ctx context.Context, token string) error {
	if s.fail {
		return errors.New("connection reset")
	}
	return s.SessionStore.Destroy(ctx, token)
}

// fakeProvider stands in for Google.
type fakeProvider struct {
	identity oauth.Identity
	err      error
	codes    []string
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.test/consent?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (oauth.Identity, error) {
	p.codes = append(p.codes, code)
	if p.err != nil {
		return oauth.Identity{}, p.err
	}
	return p.identity, nil
}

type fixture struct {
	t        *testing.T
	server   *httptest.Server
	users    *memory.UserRepository
	sessions *failingDestroyStore
	provider *fakeProvider
	metrics  *observability.Metrics
	logs     *bytes.Buffer
	client   *http.Client
}

type fixtureOption func(*web.Options)

func withoutOAuth() fixtureOption {
	return func(o *web.Options) {
		o.OAuth = nil
		o.StateSigner = nil
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	var logs bytes.Buffer
	logger := logging.Setup("sharegate", "test", logging.Options{Level: slog.LevelDebug, Writer: &logs})

	users := memory.NewUserRepository()
	sessions := &failingDestroyStore{SessionStore: memory.NewSessionStore(time.Hour)}
	hasher, err := auth.NewArgon2idHasherWithParams([]byte("web-test-secret"), 2, fastParams)
	require.NoError(t, err)
	svc, err := auth.NewAuthServiceWithLogger(users, sessions, hasher, logger)
	require.NoError(t, err)

	signer, err := oauth.NewStateSigner([]byte("state-secret"), time.Minute)
	require.NoError(t, err)
	provider := &fakeProvider{identity: oauth.Identity{Subject: "google-1", Email: "gina@example.com"}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	options := web.Options{
		Auth:           svc,
		OAuth:          provider,
		StateSigner:    signer,
		Metrics:        metrics,
		Logger:         logger,
		CookieName:     cookieName,
		ProtectedPaths: []string{"/share", "/share/**"},
	}
	for _, opt := range opts {
		opt(&options)
	}

	srv, err := web.NewServer(options)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	f := &fixture{
		t:        t,
		server:   ts,
		users:    users,
		sessions: sessions,
		provider: provider,
		metrics:  metrics,
		logs:     &logs,
	}
	f.client = f.newClient()
	return f
}

func (f *fixture) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(f.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *fixture) get(path string) *http.Response {
	f.t.Helper()
	resp, err := f.client.Get(f.server.URL + path)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) post(path string, form url.Values) *http.Response {
	f.t.Helper()
	resp, err := f.client.PostForm(f.server.URL+path, form)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) body(resp *http.Response) string {
	f.t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return string(b)
}

// sessionToken returns the session cookie the client currently holds.
func (f *fixture) sessionToken() string {
	u, err := url.Parse(f.server.URL)
	require.NoError(f.t, err)
	for _, c := range f.client.Jar.Cookies(u) {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}

// withToken returns a client that presents token and nothing else.
func (f *fixture) withToken(token string) *http.Client {
	c := f.newClient()
	u, err := url.Parse(f.server.URL)
	require.NoError(f.t, err)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: cookieName, Value: token, Path: "/"}})
	return c
}

func credentials(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

func location(resp *http.Response) string {
	return resp.Header.Get("Location")
}
