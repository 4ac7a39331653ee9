package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := LoadWithPath("missing.json", nil)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "file", cfg.StateDriver)
	assert.Equal(t, "visubase-storage", cfg.StateKey)
	assert.Equal(t, "visubase-projects", cfg.ProjectsKey)
	assert.Equal(t, "default", cfg.SchemaName)
	assert.Equal(t, "supabase", cfg.Backend)
}

func TestLayering(t *testing.T) {
	dir := chdirTemp(t)
	jsonPath := filepath.Join(dir, "visubase.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"port":"9000","backend":"postgres","schemaName":"fromjson"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VISUBASE_BACKEND_URL=https://env.example\nVISUBASE_SCHEMA_NAME=fromdotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("VISUBASE_BACKEND_URL") }) // set by .env
	t.Setenv("VISUBASE_SCHEMA_NAME", "fromenv")
	t.Setenv("VISUBASE_CORS_ORIGINS", "http://a, http://b")

	cfg, err := LoadWithPath(jsonPath, []string{"-port", "7000"})
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port, "flag beats json")
	assert.Equal(t, "postgres", cfg.Backend, "json beats default")
	assert.Equal(t, "fromenv", cfg.SchemaName, "process env beats .env and json")
	assert.Equal(t, "https://env.example", cfg.BackendURL)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
}

func TestConfigFlagSelectsFile(t *testing.T) {
	dir := chdirTemp(t)
	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"port":"1234"}`), 0o644))

	cfg, err := LoadWithPath("visubase.json", []string{"--config=" + other})
	require.NoError(t, err)
	assert.Equal(t, "1234", cfg.Port)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	_, err := LoadWithPath("", []string{"-state-driver", "etcd"})
	assert.Error(t, err)
	_, err = LoadWithPath("", []string{"-backend", "firebase"})
	assert.Error(t, err)

	c := def()
	c.ProjectsKey = c.StateKey
	assert.Error(t, c.Validate())
}
