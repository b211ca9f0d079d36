// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables holding secrets.
const (
	EnvAppSecret          = "SHAREGATE_SECRET"
	EnvDatabaseURL        = "DATABASE_URL"
	EnvRedisPassword      = "REDIS_PASSWORD"
	EnvGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"http-addr":       "http.addr",
	"secure-cookies":  "http.secure_cookies",
	"session-backend": "session.backend",
	"session-ttl":     "session.ttl",
	"metrics-addr":    "metrics_addr",
	"control-addr":    "control_addr",
	"log-format":      "log_format",
	"log-level":       "log_level",
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile is read when set. It must exist unless Optional is true.
	ConfigFile string
	Optional   bool
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
	// Flags overrides file values for flags the user actually set.
	Flags *pflag.FlagSet
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// RegisterFlags adds the overridable flags to fs. Flag defaults are
// informational; unset flags never override the file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", "", "public HTTP listen address")
	fs.Bool("secure-cookies", false, "mark session cookies Secure")
	fs.String("session-backend", "", "session store: postgres, redis or memory")
	fs.Duration("session-ttl", 0, "idle session lifetime")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("control-addr", "", "gRPC health control address")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
}

// Load merges all layers into a Config. It does not call Validate.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}

	if opts.ConfigFile != "" {
		if err := loadFile(k, opts.ConfigFile, opts.Optional); err != nil {
			return nil, err
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	secrets, err := loadSecrets(opts.EnvFile, opts.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.Secrets = secrets
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}

	if err := ValidateYAML(data); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").With("path", path).Wrap(err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// loadSecrets reads secrets from the process environment, falling back to
// the dotenv file for variables the environment does not set.
func loadSecrets(envFile string, lookup func(string) (string, bool)) (Secrets, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, fs.ErrNotExist):
			return Secrets{}, oops.Code("CONFIG_ENV_FILE_INVALID").With("path", envFile).Wrap(err)
		}
	}

	get := func(key string) string {
		if v, ok := lookup(key); ok {
			return v
		}
		return dotenv[key]
	}

	return Secrets{
		AppSecret:          get(EnvAppSecret),
		DatabaseURL:        get(EnvDatabaseURL),
		RedisPassword:      get(EnvRedisPassword),
		GoogleClientSecret: get(EnvGoogleClientSecret),
	}, nil
}
