// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/oauth2"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sharegate/sharegate/internal/auth"
	"github.com/sharegate/sharegate/internal/auth/postgres"
	authredis "github.com/sharegate/sharegate/internal/auth/redis"
	"github.com/sharegate/sharegate/internal/control"
	"github.com/sharegate/sharegate/internal/oauth"
	"github.com/sharegate/sharegate/internal/web"
)

const cookieName = "sharegate_session"

var fastParams = auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// googleStub serves the token and userinfo endpoints of a provider.
type googleStub struct {
	server  *httptest.Server
	mu      sync.Mutex
	subject string
	email   string
}

func newGoogleStub() *googleStub {
	g := &googleStub{subject: "google-42", email: "grace@example.com"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, _ *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            g.subject,
			"email":          g.email,
			"email_verified": true,
		})
	})
	g.server = httptest.NewServer(mux)
	return g
}

func (g *googleStub) setIdentity(subject, email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subject, g.email = subject, email
}

// browser is a cookie-carrying client that does not follow redirects.
type browser struct {
	base   string
	client *http.Client
}

func newBrowser(base string) *browser {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &browser{
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (*http.Response, string) {
	resp, err := b.client.Get(b.base + path)
	Expect(err).NotTo(HaveOccurred())
	return readAll(resp)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	resp, err := b.client.PostForm(b.base+path, form)
	Expect(err).NotTo(HaveOccurred())
	return readAll(resp)
}

func (b *browser) sessionToken() string {
	u, err := url.Parse(b.base)
	Expect(err).NotTo(HaveOccurred())
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}

func readAll(resp *http.Response) (*http.Response, string) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(body)
}

func credentials(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

// signInWithGoogle walks the consent redirect and returns the callback
// response.
func signInWithGoogle(b *browser) *http.Response {
	resp, _ := b.get("/auth/google")
	Expect(resp.StatusCode).To(Equal(http.StatusFound))
	consent, err := url.Parse(resp.Header.Get("Location"))
	Expect(err).NotTo(HaveOccurred())

	q := url.Values{"state": {consent.Query().Get("state")}, "code": {"auth-code"}}
	resp, _ = b.get("/auth/google/callback?" + q.Encode())
	return resp
}

var _ = Describe("Sign-in flows", func() {
	for _, backend := range []string{"postgres", "redis"} {
		Context("with the "+backend+" session backend", func() {
			var (
				users    *postgres.UserRepository
				sessions auth.SessionStore
				google   *googleStub
				server   *httptest.Server
			)

			BeforeEach(func() {
				resetData()

				users = postgres.NewUserRepository(env.pool)
				if backend == "redis" {
					sessions = authredis.NewSessionStore(env.redis, time.Hour)
				} else {
					sessions = postgres.NewSessionStore(env.pool, time.Hour)
				}

				hasher, err := auth.NewArgon2idHasherWithParams([]byte("integration-secret"), 4, fastParams)
				Expect(err).NotTo(HaveOccurred())
				svc, err := auth.NewAuthServiceWithLogger(users, sessions, hasher, slog.New(slog.DiscardHandler))
				Expect(err).NotTo(HaveOccurred())

				google = newGoogleStub()
				provider, err := oauth.NewGoogle(oauth.GoogleConfig{
					ClientID:     "client-id",
					ClientSecret: "client-secret",
					RedirectURL:  "http://sharegate.test/auth/google/callback",
					Endpoint: oauth2.Endpoint{
						AuthURL:   google.server.URL + "/auth",
						TokenURL:  google.server.URL + "/token",
						AuthStyle: oauth2.AuthStyleInParams,
					},
					UserInfoURL: google.server.URL + "/userinfo",
				})
				Expect(err).NotTo(HaveOccurred())
				signer, err := oauth.NewStateSigner([]byte("integration-state-key"), time.Minute)
				Expect(err).NotTo(HaveOccurred())

				srv, err := web.NewServer(web.Options{
					Auth:           svc,
					OAuth:          provider,
					StateSigner:    signer,
					Logger:         slog.New(slog.DiscardHandler),
					CookieName:     cookieName,
					ProtectedPaths: []string{"/share", "/share/**"},
				})
				Expect(err).NotTo(HaveOccurred())
				server = httptest.NewServer(srv.Handler())
			})

			AfterEach(func() {
				server.Close()
				google.server.Close()
			})

			It("registers, signs out and signs back in", func() {
				b := newBrowser(server.URL)

				resp, _ := b.post("/register", credentials("ada@example.com", "correct horse"))
				Expect(resp.Header.Get("Location")).To(Equal("/share"))

				resp, body := b.get("/share")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(body).To(ContainSubstring("Signed in as ada@example.com"))
				Expect(body).To(ContainSubstring("Your account has been created."))

				_, body = b.get("/share")
				Expect(body).NotTo(ContainSubstring("Your account has been created."), "flashes are read once")

				resp, _ = b.post("/logout", nil)
				Expect(resp.Header.Get("Location")).To(Equal("/"))
				resp, _ = b.get("/share")
				Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))

				resp, _ = b.post("/login", credentials("ada@example.com", "correct horse"))
				Expect(resp.Header.Get("Location")).To(Equal("/share"))
				resp, _ = b.get("/share")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})

			It("rotates the token on sign-in and kills the old one", func() {
				b := newBrowser(server.URL)
				b.get("/")
				anon := b.sessionToken()
				Expect(anon).NotTo(BeEmpty())

				b.post("/register", credentials("lin@example.com", "pw"))
				Expect(b.sessionToken()).NotTo(Equal(anon))

				_, err := sessions.GetPrincipal(context.Background(), anon)
				Expect(err).To(MatchError(auth.ErrNotFound))
			})

			It("rejects a duplicate email and a wrong password", func() {
				first := newBrowser(server.URL)
				first.post("/register", credentials("bo@example.com", "pw-one"))

				second := newBrowser(server.URL)
				resp, _ := second.post("/register", credentials("bo@example.com", "pw-two"))
				Expect(resp.Header.Get("Location")).To(Equal("/register"))
				_, body := second.get("/register")
				Expect(body).To(ContainSubstring("An account with that email already exists."))

				resp, _ = second.post("/login", credentials("bo@example.com", "wrong"))
				Expect(resp.Header.Get("Location")).To(Equal("/login"))
				_, body = second.get("/login")
				Expect(body).To(ContainSubstring("Invalid email or password."))
			})

			It("signs in with Google and reuses the account by subject", func() {
				b := newBrowser(server.URL)
				resp := signInWithGoogle(b)
				Expect(resp.Header.Get("Location")).To(Equal("/share"))
				_, body := b.get("/share")
				Expect(body).To(ContainSubstring("Signed in as grace@example.com"))

				b.post("/logout", nil)
				google.setIdentity("google-42", "grace.renamed@example.com")
				Expect(signInWithGoogle(b).Header.Get("Location")).To(Equal("/share"))
				_, body = b.get("/share")
				Expect(body).To(ContainSubstring("Signed in as grace@example.com"), "existing user is returned unchanged")
			})

			It("refuses to merge a Google identity into a password account", func() {
				b := newBrowser(server.URL)
				b.post("/register", credentials("grace@example.com", "pw"))
				b.post("/logout", nil)

				Expect(signInWithGoogle(b).Header.Get("Location")).To(Equal("/login"))
				_, body := b.get("/login")
				Expect(body).To(ContainSubstring("An account with that email already exists."))
			})

			It("denies a session whose user was deleted", func() {
				b := newBrowser(server.URL)
				b.post("/register", credentials("gone@example.com", "pw"))

				u, err := users.FindByEmail(context.Background(), "gone@example.com")
				Expect(err).NotTo(HaveOccurred())
				Expect(users.Delete(context.Background(), u.ID)).To(Succeed())

				resp, _ := b.get("/share")
				Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			})

			It("keeps every flash under concurrent writers", func() {
				ctx := context.Background()
				token, err := sessions.Create(ctx)
				Expect(err).NotTo(HaveOccurred())

				var wg sync.WaitGroup
				for range 20 {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						Expect(sessions.SetFlash(ctx, token, auth.SeveritySuccess, "hello")).To(Succeed())
					}()
				}
				wg.Wait()

				flashes, err := sessions.TakeFlash(ctx, token)
				Expect(err).NotTo(HaveOccurred())
				Expect(flashes).To(HaveLen(20))
			})
		})
	}
})

var _ = Describe("Control server", func() {
	It("reports SERVING while the database answers", func() {
		srv, err := control.NewGRPCServer("sharegate", env.pool.Ping, slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())
		_, err = srv.Start("127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = srv.Stop(context.Background()) })

		status, err := control.Probe(env.ctx, srv.Addr(), "sharegate")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(healthpb.HealthCheckResponse_SERVING))
	})
})
