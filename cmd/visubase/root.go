package main

import (
	"github.com/spf13/cobra"

	"visubase/internal/app"
	"visubase/internal/config"
)

type rootOptions struct {
	configPath  string
	stateDriver string
	stateDir    string
	redisAddr   string
	backend     string
	url         string
	key         string
	schemaName  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "visubase",
		Short:         "Design database schemas and sync them to a hosted backend",
		Long:          "Works on the same saved schema as the visubase server: export it as SQL or JSON, sync it to Supabase or Postgres, and manage named projects.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "visubase.json", "Path to config JSON")
	f.StringVar(&opts.stateDriver, "state-driver", "", "State driver (file/redis)")
	f.StringVar(&opts.stateDir, "state-dir", "", "State folder (if state-driver=file)")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address (if state-driver=redis)")
	f.StringVar(&opts.backend, "backend", "", "Backend kind (supabase/postgres)")
	f.StringVar(&opts.url, "url", "", "Backend URL or Postgres connection string")
	f.StringVar(&opts.key, "key", "", "Backend key")
	f.StringVar(&opts.schemaName, "schema-name", "", "Name the schema is synced under")

	root.AddCommand(
		newExportCmd(opts),
		newSyncCmd(opts),
		newCreateTablesCmd(opts),
		newPullCmd(opts),
		newImportCmd(opts),
		newProjectCmd(opts),
		newConnectCmd(),
		newDisconnectCmd(),
		newLoadDSLCmd(opts),
		newLintCmd(opts),
		newResetCmd(opts),
		newSetupSQLCmd(),
	)
	return root
}

// config resolves file and environment values, then applies explicitly set flags.
func (o *rootOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Resolve(o.configPath)
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("state-driver", &cfg.StateDriver, o.stateDriver)
	set("state-dir", &cfg.StateDir, o.stateDir)
	set("redis-addr", &cfg.RedisAddr, o.redisAddr)
	set("backend", &cfg.Backend, o.backend)
	set("url", &cfg.BackendURL, o.url)
	set("key", &cfg.BackendKey, o.key)
	set("schema-name", &cfg.SchemaName, o.schemaName)
	return cfg, cfg.Validate()
}

func (o *rootOptions) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	return app.Open(cmd.Context(), cfg)
}
