// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package xdg resolves XDG Base Directory paths for sharegate.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "sharegate"

// ConfigDir returns $XDG_CONFIG_HOME/sharegate, falling back to
// ~/.config/sharegate.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default YAML config path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvFile returns the default dotenv path for secrets.
func EnvFile() string {
	return filepath.Join(ConfigDir(), ".env")
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
