package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"visubase/internal/app"
	"visubase/internal/baas"
	"visubase/internal/dsl"
	"visubase/internal/pg"
	"visubase/internal/schema"
	"visubase/internal/supabase"
	"visubase/internal/syncer"
	"visubase/internal/vault"
)

// withApp opens the application for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func writeOut(cmd *cobra.Command, path, text string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "export [sql|json]",
		Short:     "Export the schema as a SQL script or JSON",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"sql", "json"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				doc := a.Store.Document()
				if args[0] == "sql" {
					return writeOut(cmd, out, pg.GenerateSQL(doc))
				}
				text, err := schema.ExportJSON(doc)
				if err != nil {
					return err
				}
				return writeOut(cmd, out, text+"\n")
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// printResult reports a sync result; anything but success is an error exit.
func printResult(cmd *cobra.Command, res syncer.Result) error {
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if res.Bootstrapped {
		fmt.Fprintln(cmd.OutOrStdout(), "(created the schemas table first)")
	}
	if res.Success {
		return nil
	}
	return fmt.Errorf("%s (%s)", res.Outcome, res.State)
}

func newSyncCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Save the schema to the backend and create its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				res := a.Sync.Sync(cmd.Context(), a.Credentials(baas.Credentials{}), a.Config.SchemaName, a.Store.Document())
				return printResult(cmd, res)
			})
		},
	}
}

func newCreateTablesCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-tables",
		Short: "Create the tables without saving the schema document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				res := a.Sync.CreateTablesOnly(cmd.Context(), a.Credentials(baas.Credentials{}), a.Store.Document())
				return printResult(cmd, res)
			})
		},
	}
}

func newPullCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [name]",
		Short: "Replace the local schema with the one saved on the backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				name := a.Config.SchemaName
				if len(args) == 1 {
					name = args[0]
				}
				doc, res := a.Sync.Pull(cmd.Context(), a.Credentials(baas.Credentials{}), name)
				if res.Success {
					if err := a.Store.Replace(doc); err != nil {
						return err
					}
				}
				return printResult(cmd, res)
			})
		},
	}
}

func newImportCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Append the backend's existing tables to the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				tables, res := a.Sync.Import(cmd.Context(), a.Credentials(baas.Credentials{}))
				for _, t := range tables {
					if _, err := a.Store.AddTable(t); err != nil {
						return err
					}
				}
				return printResult(cmd, res)
			})
		},
	}
}

func newProjectCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage named projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "save [name]",
			Short: "Save the current schema as a project",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.withApp(cmd, func(a *app.App) error {
					if err := a.Projects.Save(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "saved project %q\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List saved projects",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.withApp(cmd, func(a *app.App) error {
					list, err := a.Projects.List(cmd.Context())
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "NAME\tTABLES\tSAVED")
					for _, p := range list {
						fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, p.Tables, p.SavedAt.Local().Format(time.DateTime))
					}
					return w.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "load [name]",
			Short: "Make a project the active schema; the current one is kept as _autosave_backup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.withApp(cmd, func(a *app.App) error {
					doc, err := a.Projects.Load(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "loaded project %q (%d tables)\n", args[0], len(doc.Tables))
					return nil
				})
			},
		},
		newProjectDeleteCmd(o),
	)
	return cmd
}

func newProjectDeleteCmd(o *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a saved project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("deleting project %q cannot be undone; pass --yes to confirm", args[0])
			}
			return o.withApp(cmd, func(a *app.App) error {
				if err := a.Projects.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted project %q\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm")
	return cmd
}

func newConnectCmd() *cobra.Command {
	var creds baas.Credentials
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Store the backend URL and key in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := vault.Save(creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored credentials for %s\n", creds.URL)
			return nil
		},
	}
	// local flags shadow the persistent --url/--key of the root
	cmd.Flags().StringVar(&creds.URL, "url", "", "Backend URL")
	cmd.Flags().StringVar(&creds.Key, "key", "", "Backend key")
	return cmd
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Remove stored backend credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return vault.Clear()
		},
	}
}

func newLoadDSLCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load-dsl [file]",
		Short: "Replace the schema with a plain-text schema description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := dsl.ParseFile(args[0])
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(a *app.App) error {
				if err := a.Store.Replace(doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d tables, %d relationships\n", len(doc.Tables), len(doc.Relationships))
				return nil
			})
		},
	}
}

func newLintCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Report schema warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				issues := schema.Lint(a.Store.Document(), a.Types.Known)
				for _, is := range issues {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", is.Code, is.Message)
				}
				if len(issues) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no issues")
				}
				return nil
			})
		},
	}
}

func newResetCmd(o *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the schema with the three default tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset discards the current schema; pass --yes to confirm")
			}
			return o.withApp(cmd, func(a *app.App) error {
				return a.Store.Replace(schema.DefaultDocument())
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm")
	return cmd
}

func newSetupSQLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup-sql",
		Short: "Print the one-time SQL that prepares a Supabase project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", baas.SetupSQL, supabase.SetupFunctionSQL)
			return err
		},
	}
}
