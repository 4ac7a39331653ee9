package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"visubase/internal/baas"
	"visubase/internal/config"
	"visubase/internal/vault"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StateDriver: "file",
		StateDir:    filepath.Join(t.TempDir(), "state"),
		StateKey:    "visubase-storage",
		ProjectsKey: "visubase-projects",
		SchemaName:  "default",
		Backend:     "supabase",
	}
}

func TestOpenRestoresAcrossRuns(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.Len(t, a.Store.Document().Tables, 3)
	_, err = a.Store.CreateTable("Users")
	require.NoError(t, err)
	a.Close()

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.Len(t, b.Store.Document().Tables, 4)
	assert.True(t, b.Types.Known("uuid"))
}

func TestOpenRejectsUnknownDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.StateDriver = "etcd"
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Backend = "firebase"
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)

	_, err = Dialer("postgres")
	assert.NoError(t, err)
}

func TestCredentialsPrecedence(t *testing.T) {
	keyring.MockInit()
	cfg := testConfig(t)
	cfg.BackendURL = "https://configured"
	a, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	got := a.Credentials(baas.Credentials{})
	assert.Equal(t, baas.Credentials{URL: "https://configured"}, got)

	require.NoError(t, vault.Save(baas.Credentials{URL: "https://stored", Key: "stored"}))
	got = a.Credentials(baas.Credentials{})
	assert.Equal(t, baas.Credentials{URL: "https://configured", Key: "stored"}, got)

	got = a.Credentials(baas.Credentials{URL: "https://req", Key: "req"})
	assert.Equal(t, baas.Credentials{URL: "https://req", Key: "req"}, got)
}

func TestInitSentryDisabled(t *testing.T) {
	flush, err := InitSentry("", "test")
	require.NoError(t, err)
	flush()
}
