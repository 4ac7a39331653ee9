package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// run executes the CLI against a private state folder.
func run(t *testing.T, stateDir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(stateDir, "none.json"), "--state-dir", stateDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestExportSQL(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "export", "sql")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "-- Generated SQL Schema"))
	assert.Contains(t, out, "CREATE TABLE box_1")

	_, err = run(t, dir, "export", "yaml")
	assert.Error(t, err)
}

func TestExportJSONToFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.json")
	_, err := run(t, dir, "export", "json", "-o", target)
	require.NoError(t, err)
	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"cuboid1"`)
}

func TestProjectCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "project", "save", "first")
	require.NoError(t, err)
	out, err := run(t, dir, "project", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "_autosave_backup")

	_, err = run(t, dir, "reset")
	assert.Error(t, err, "reset needs --yes")
	_, err = run(t, dir, "reset", "--yes")
	require.NoError(t, err)

	out, err = run(t, dir, "project", "load", "first")
	require.NoError(t, err)
	assert.Contains(t, out, "3 tables")

	_, err = run(t, dir, "project", "delete", "first", "--yes")
	require.NoError(t, err)
	_, err = run(t, dir, "project", "delete", "first", "--yes")
	assert.Error(t, err)
}

func TestProjectDeleteNeedsConfirmation(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "project", "save", "keep")
	require.NoError(t, err)

	_, err = run(t, dir, "project", "delete", "keep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err := run(t, dir, "project", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "keep")

	out, err = run(t, dir, "project", "delete", "keep", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, `deleted project "keep"`)
}

func TestLint(t *testing.T) {
	out, err := run(t, t.TempDir(), "lint")
	require.NoError(t, err)
	assert.Contains(t, out, "no_columns")
}

func TestSyncWithoutCredentialsFails(t *testing.T) {
	keyring.MockInit()
	t.Setenv("VISUBASE_BACKEND_URL", "")
	t.Setenv("VISUBASE_BACKEND_KEY", "")
	out, err := run(t, t.TempDir(), "sync")
	require.Error(t, err)
	assert.Contains(t, out, "credentials")
}

func TestConnectDisconnect(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()

	_, err := run(t, dir, "connect", "--url", "https://x.supabase.co")
	assert.Error(t, err, "key is required")

	out, err := run(t, dir, "connect", "--url", "https://x.supabase.co", "--key", "anon")
	require.NoError(t, err)
	assert.Contains(t, out, "https://x.supabase.co")

	_, err = run(t, dir, "disconnect")
	require.NoError(t, err)
}

func TestSetupSQL(t *testing.T) {
	out, err := run(t, t.TempDir(), "setup-sql")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS public.schemas")
	assert.Contains(t, out, "exec_sql")
}

func TestLoadDSL(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "blog.dsl")
	require.NoError(t, os.WriteFile(src, []byte("table Users:\n  id: serial pk\ntable Posts:\n  user_id: integer ref[Users]\n"), 0o644))

	out, err := run(t, dir, "load-dsl", src)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 2 tables, 1 relationships")

	out, err = run(t, dir, "export", "sql")
	require.NoError(t, err)
	assert.Contains(t, out, "FOREIGN KEY (user_id) REFERENCES users(id)")
}
