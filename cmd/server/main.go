package main

import (
	"context"
	"log"
	"os"

	"visubase/internal/api"
	"visubase/internal/app"
	"visubase/internal/config"
)

func main() {
	cfg, err := config.LoadWithPath("visubase.json", os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	flush, err := app.InitSentry(cfg.SentryDSN, "visubase-server")
	if err != nil {
		log.Printf("sentry disabled: %v", err)
	}
	defer flush()

	a, err := app.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()
	if cfg.SentryDSN != "" {
		a.ReportSyncFailures()
	}

	snap := a.Store.Snapshot()
	log.Printf("loaded %d tables, %d relationships (state: %s, backend: %s)",
		len(snap.Tables), len(snap.Relationships), cfg.StateDriver, cfg.Backend)

	log.Printf("starting visubase on :%s...", cfg.Port)
	err = api.RunServer(":"+cfg.Port, api.Deps{
		Store:    a.Store,
		Projects: a.Projects,
		Types:    a.Types,
		Backend: api.Backend{
			Orchestrator: a.Sync,
			Dialer:       a.Dialer,
			Credentials:  a.Credentials,
			SchemaName:   cfg.SchemaName,
		},
		Origins: cfg.CORSOrigins,
	})
	if err != nil {
		log.Printf("server stopped: %v", err)
	}
}
