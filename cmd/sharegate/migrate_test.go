// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharegate/sharegate/pkg/errutil"
)

type fakeMigrator struct {
	version uint
	dirty   bool
	pending []uint
	upErr   error
	calls   []string
	closed  bool
}

func (m *fakeMigrator) Up() error {
	m.calls = append(m.calls, "up")
	return m.upErr
}

func (m *fakeMigrator) Down() error {
	m.calls = append(m.calls, "down")
	m.version = 0
	return nil
}

func (m *fakeMigrator) Steps(n int) error {
	m.calls = append(m.calls, "steps")
	m.version = uint(int(m.version) + n)
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, m.dirty, nil }

func (m *fakeMigrator) Force(v int) error {
	m.calls = append(m.calls, "force")
	m.version = uint(v)
	m.dirty = false
	return nil
}

func (m *fakeMigrator) PendingMigrations() ([]uint, error) { return m.pending, nil }

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}

// useFakeMigrator swaps migratorFactory for the duration of the test.
func useFakeMigrator(t *testing.T, m *fakeMigrator) *string {
	t.Helper()
	var gotURL string
	orig := migratorFactory
	migratorFactory = func(url string) (migrator, error) {
		gotURL = url
		return m, nil
	}
	t.Cleanup(func() { migratorFactory = orig })
	return &gotURL
}

func runMigrate(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, envFile = "", ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"migrate"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrate_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	useFakeMigrator(t, &fakeMigrator{})

	_, err := runMigrate(t)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestMigrate_Up(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sharegate")
	m := &fakeMigrator{pending: []uint{1, 2}}
	gotURL := useFakeMigrator(t, m)

	out, err := runMigrate(t)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/sharegate", *gotURL)
	assert.Equal(t, []string{"up"}, m.calls)
	assert.Contains(t, out, "Applying 2 migration(s)")
	assert.True(t, m.closed)
}

func TestMigrate_UpToDate(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sharegate")
	m := &fakeMigrator{version: 2}
	useFakeMigrator(t, m)

	out, err := runMigrate(t)
	require.NoError(t, err)
	assert.Empty(t, m.calls)
	assert.Contains(t, out, "Database is up to date")
}

func TestMigrate_UpFailure(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sharegate")
	m := &fakeMigrator{pending: []uint{1}, upErr: errors.New("syntax error")}
	useFakeMigrator(t, m)

	_, err := runMigrate(t)
	require.Error(t, err)
	assert.True(t, m.closed, "migrator must be closed on failure")
}

func TestMigrate_Subcommands(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sharegate")

	tests := []struct {
		name     string
		args     []string
		start    uint
		wantCall []string
		wantOut  string
	}{
		{"version", []string{"version"}, 2, nil, "Schema version: 2"},
		{"down", []string{"down"}, 2, []string{"down"}, "All migrations rolled back"},
		{"steps back", []string{"steps", "--", "-1"}, 2, []string{"steps"}, "Schema version: 1"},
		{"force", []string{"force", "1"}, 2, []string{"force"}, "Schema version: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMigrator{version: tt.start}
			useFakeMigrator(t, m)

			out, err := runMigrate(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCall, m.calls)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestMigrate_VersionDirty(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sharegate")
	useFakeMigrator(t, &fakeMigrator{version: 3, dirty: true})

	out, err := runMigrate(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 3 (dirty)")
}

func TestMigrate_ForceRejectsGarbage(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sharegate")
	m := &fakeMigrator{}
	useFakeMigrator(t, m)

	_, err := runMigrate(t, "force", "abc")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Empty(t, m.calls)
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "negative is valid", input: "-1", wantVersion: -1},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestMigrateCommand_Properties(t *testing.T) {
	cmd := NewMigrateCmd()

	assert.Equal(t, "migrate", cmd.Use)
	assert.Contains(t, cmd.Short, "migration")
	assert.Contains(t, cmd.Long, "PostgreSQL")
}
