// Package app wires configuration into the running pieces shared by the
// server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"visubase/internal/baas"
	"visubase/internal/config"
	"visubase/internal/pg"
	"visubase/internal/reference"
	"visubase/internal/schema"
	"visubase/internal/state"
	"visubase/internal/supabase"
	"visubase/internal/syncer"
	"visubase/internal/vault"
)

type App struct {
	Config   config.Config
	KV       state.KV
	Store    *schema.Store
	Projects *state.Projects
	Types    reference.TypeCatalog
	Sync     *syncer.Orchestrator
	Dialer   baas.Dialer

	closers []func() error
}

// Open builds the application from cfg: the state driver, the store restored
// from it, the type catalog and the sync orchestrator for the configured backend.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	kv, err := a.openKV(ctx)
	if err != nil {
		return nil, err
	}
	a.KV = kv

	doc, restored := state.Load(ctx, kv, cfg.StateKey)
	if !restored {
		log.Printf("app: no saved schema under %s, starting with %d default tables", cfg.StateKey, len(doc.Tables))
	}
	active := &state.Persister{KV: kv, Key: cfg.StateKey}
	a.Store = schema.NewStore(doc, active)
	a.Projects = state.NewProjects(kv, cfg.ProjectsKey, active, a.Store)

	a.Types, err = reference.LoadCatalog(cfg.TypesDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load type catalog: %w", err)
	}

	dialer, err := Dialer(cfg.Backend)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dialer = dialer
	a.Sync = syncer.New(dialer)
	return a, nil
}

func (a *App) openKV(ctx context.Context) (state.KV, error) {
	switch a.Config.StateDriver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", a.Config.RedisAddr, err)
		}
		a.closers = append(a.closers, rdb.Close)
		return state.NewRedisKV(rdb, "visubase:"), nil
	case "file", "":
		return &state.FileKV{Root: a.Config.StateDir}, nil
	default:
		return nil, fmt.Errorf("unknown state driver %q", a.Config.StateDriver)
	}
}

// Dialer returns the backend dialer for kind.
func Dialer(kind string) (baas.Dialer, error) {
	switch kind {
	case "supabase", "":
		return supabase.Dialer(http.DefaultTransport), nil
	case "postgres":
		return pg.Dialer, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// Credentials completes explicit with configured values and then with the
// pair stored in the keyring.
func (a *App) Credentials(explicit baas.Credentials) baas.Credentials {
	if explicit.URL == "" {
		explicit.URL = a.Config.BackendURL
	}
	if explicit.Key == "" {
		explicit.Key = a.Config.BackendKey
	}
	creds, err := vault.Resolve(explicit)
	if err != nil && !errors.Is(err, vault.ErrNoCredentials) {
		log.Printf("app: keyring: %v", err)
	}
	return creds
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Printf("app: close: %v", err)
		}
	}
	a.closers = nil
}
