// Package cli implements the kyval command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dokzlo13/kyval/internal/config"
	"github.com/dokzlo13/kyval/internal/db"
	"github.com/dokzlo13/kyval/internal/kv"
)

// Version is the kyval release, overridden at build time with -ldflags.
var Version = "0.1.0"

const defaultConfigPath = "kyval.yaml"

// options holds the persistent flags and the resolved configuration.
type options struct {
	configPath string
	target     string
	table      string
	authToken  string
	logLevel   string
	logJSON    bool

	cfg *config.Config
}

// NewRootCommand builds the kyval command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "kyval",
		Short: "key-value store on top of SQLite, libSQL or PostgreSQL",
		Long: fmt.Sprintf(`kyval (v%s)

Stores JSON values by key in a single SQL table, with optional
per-key expiration. Targets may be ":memory:", a SQLite file,
a postgres:// URI or a libsql:// URI.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to configuration file")
	flags.StringVar(&opts.target, "target", "", "database target (overrides config)")
	flags.StringVar(&opts.table, "table", "", "table name (overrides config)")
	flags.StringVar(&opts.authToken, "auth-token", "", "auth token for remote libsql targets")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(
		newGetCommand(opts),
		newSetCommand(opts),
		newRemoveCommand(opts),
		newClearCommand(opts),
		newListCommand(opts),
		newSweepCommand(opts),
		newRunCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)

	return root
}

// resolve loads env files and the config file, then applies flag overrides.
// A missing config file is only an error when --config was given explicitly.
func (o *options) resolve(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if o.target != "" {
		cfg.Database.Target = o.target
	}
	if o.table != "" {
		cfg.Database.Table = o.table
	}
	if o.authToken != "" {
		cfg.Database.AuthToken = o.authToken
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logJSON {
		cfg.Log.JSON = true
	}

	setupLogging(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)
	o.cfg = cfg
	return nil
}

// withStore opens the configured store for the duration of fn.
func (o *options) withStore(ctx context.Context, fn func(*kv.Store) error) error {
	database, err := db.Open(ctx, db.Options{
		Target:    o.cfg.Database.Target,
		TableName: o.cfg.Database.Table,
		AuthToken: o.cfg.Database.AuthToken,
	})
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(kv.New(database, kv.WithPurgeOnRead(o.cfg.Database.PurgeOnRead)))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kyval",
		Args:  cobra.NoArgs,
		// Skip config loading for version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kyval v%s\n", Version)
		},
	}
}
