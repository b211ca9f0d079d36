// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package config loads sharegate configuration. Layers, highest wins:
// built-in defaults, YAML file, command-line flags. Secrets only come from
// the environment, optionally seeded by a dotenv file.
package config

import (
	"slices"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// MinSecretBytes is the minimum length of the application secret.
const MinSecretBytes = 32

// Config is the full runtime configuration.
type Config struct {
	HTTP        HTTPConfig    `koanf:"http" json:"http"`
	Session     SessionConfig `koanf:"session" json:"session"`
	Redis       RedisConfig   `koanf:"redis" json:"redis"`
	OAuth       OAuthConfig   `koanf:"oauth" json:"oauth"`
	Hasher      HasherConfig  `koanf:"hasher" json:"hasher"`
	MetricsAddr string        `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Metrics and health probe listen address; empty disables it"`
	ControlAddr string        `koanf:"control_addr" json:"control_addr,omitempty" jsonschema:"description=gRPC health control listen address"`
	LogFormat   string        `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel    string        `koanf:"log_level" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// Secrets never appear in the config file.
	Secrets Secrets `koanf:"-" json:"-"`
}

// HTTPConfig configures the public web server.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" json:"addr,omitempty"`
	SecureCookies     bool          `koanf:"secure_cookies" json:"secure_cookies,omitempty"`
	CookieName        string        `koanf:"cookie_name" json:"cookie_name,omitempty" jsonschema:"pattern=^[A-Za-z0-9_-]+$"`
	ProtectedPaths    []string      `koanf:"protected_paths" json:"protected_paths,omitempty" jsonschema:"description=Glob patterns of paths that require a signed-in user"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" json:"read_header_timeout,omitempty"`
	RequestTimeout    time.Duration `koanf:"request_timeout" json:"request_timeout,omitempty"`
}

// SessionConfig selects and tunes the session store.
type SessionConfig struct {
	Backend string        `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=postgres,enum=redis,enum=memory"`
	TTL     time.Duration `koanf:"ttl" json:"ttl,omitempty"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
	DB   int    `koanf:"db" json:"db,omitempty" jsonschema:"minimum=0"`
}

// OAuthConfig configures federated login.
type OAuthConfig struct {
	Google GoogleConfig `koanf:"google" json:"google"`
}

// GoogleConfig configures Google login. Leaving ClientID empty disables it.
type GoogleConfig struct {
	ClientID    string `koanf:"client_id" json:"client_id,omitempty"`
	RedirectURL string `koanf:"redirect_url" json:"redirect_url,omitempty" jsonschema:"format=uri"`
}

// HasherConfig tunes the password hasher.
type HasherConfig struct {
	Concurrency int `koanf:"concurrency" json:"concurrency,omitempty" jsonschema:"minimum=1"`
}

// Secrets are read from the environment.
type Secrets struct {
	AppSecret          string // SHAREGATE_SECRET
	DatabaseURL        string // DATABASE_URL
	RedisPassword      string // REDIS_PASSWORD
	GoogleClientSecret string // GOOGLE_CLIENT_SECRET
}

// Defaults returns the built-in configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":                "127.0.0.1:8080",
		"http.secure_cookies":      false,
		"http.cookie_name":         "sharegate_session",
		"http.protected_paths":     []string{"/share", "/share/**"},
		"http.read_header_timeout": "10s",
		"http.request_timeout":     "30s",
		"session.backend":          BackendPostgres,
		"session.ttl":              "24h",
		"redis.addr":               "127.0.0.1:6379",
		"redis.db":                 0,
		"metrics_addr":             "127.0.0.1:9100",
		"control_addr":             "127.0.0.1:9101",
		"log_format":               "json",
		"log_level":                "info",
		"hasher.concurrency":       4,
	}
}

// OAuthEnabled reports whether Google login is configured.
func (c *Config) OAuthEnabled() bool {
	return c.OAuth.Google.ClientID != ""
}

// Validate checks the merged configuration, secrets included.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "is required")
	}
	if c.HTTP.CookieName == "" {
		return invalid("http.cookie_name", "is required")
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		return invalid("http.read_header_timeout", "must be positive")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return invalid("http.request_timeout", "must be positive")
	}
	for _, pattern := range c.HTTP.ProtectedPaths {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return oops.Code("CONFIG_INVALID").
				With("key", "http.protected_paths").
				With("pattern", pattern).
				Wrap(err)
		}
	}

	if !slices.Contains([]string{BackendPostgres, BackendRedis, BackendMemory}, c.Session.Backend) {
		return invalid("session.backend", "must be postgres, redis or memory")
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "must be positive")
	}
	if c.Session.Backend == BackendRedis && c.Redis.Addr == "" {
		return invalid("redis.addr", "is required for the redis backend")
	}
	if c.Redis.DB < 0 {
		return invalid("redis.db", "cannot be negative")
	}
	if c.Session.Backend != BackendMemory && c.Secrets.DatabaseURL == "" {
		return invalid("DATABASE_URL", "is required unless session.backend is memory")
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "must be json or text")
	}
	if c.Hasher.Concurrency < 1 {
		return invalid("hasher.concurrency", "must be at least 1")
	}

	if len(c.Secrets.AppSecret) < MinSecretBytes {
		return invalid("SHAREGATE_SECRET", "must be at least 32 bytes")
	}

	if c.OAuthEnabled() {
		if c.OAuth.Google.RedirectURL == "" {
			return invalid("oauth.google.redirect_url", "is required when oauth.google.client_id is set")
		}
		if c.Secrets.GoogleClientSecret == "" {
			return invalid("GOOGLE_CLIENT_SECRET", "is required when oauth.google.client_id is set")
		}
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}
