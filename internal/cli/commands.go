package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/kyval/internal/app"
	"github.com/dokzlo13/kyval/internal/kv"
	"github.com/dokzlo13/kyval/internal/lua"
)

// errKeyNotFound makes `kyval get` exit non-zero for absent or expired keys.
var errKeyNotFound = errors.New("key not found")

func newGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print the JSON value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *kv.Store) error {
				value, ok, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", errKeyNotFound, args[0])
				}

				out, err := json.Marshal(value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}

func newSetCommand(opts *options) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Store a value under a key",
		Long: `Store a value under a key. The value is parsed as JSON; anything
that is not valid JSON is stored as a plain string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *kv.Store) error {
				if err := store.SetWithTTL(cmd.Context(), args[0], parseValue(args[1]), ttl); err != nil {
					return err
				}
				log.Debug().Str("key", args[0]).Dur("ttl", ttl).Msg("Stored value")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the key after this duration (e.g. 30s, 1h)")

	return cmd
}

func newRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [key...]",
		Aliases: []string{"del"},
		Short:   "Remove one or more keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *kv.Store) error {
				if len(args) == 1 {
					return store.Remove(cmd.Context(), args[0])
				}
				return store.RemoveMany(cmd.Context(), args)
			})
		},
	}
}

func newClearCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every key from the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *kv.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				log.Info().Str("table", store.Table()).Msg("Cleared table")
				return nil
			})
		},
	}
}

func newListCommand(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all live keys with their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *kv.Store) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printEntriesJSON(cmd, entries)
				}
				return printEntriesTable(cmd, entries)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as a JSON array")

	return cmd
}

func newSweepCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired rows now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *kv.Store) error {
				count, err := store.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired keys\n", count)
				return nil
			})
		},
	}
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run [script.lua]",
		Short: "Run a Lua script with the kv module bound to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *kv.Store) error {
				runtime := lua.NewRuntime(store)
				defer runtime.Close()
				return runtime.RunFile(cmd.Context(), args[0])
			})
		},
	}
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the expiry sweeper and health endpoints until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.SignalContext()

			application, err := app.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			if err := application.Start(ctx); err != nil {
				application.Stop()
				return err
			}

			application.Wait()
			return application.Stop()
		},
	}
}

// parseValue treats the argument as JSON when it is valid JSON, else as a string.
func parseValue(arg string) any {
	if json.Valid([]byte(arg)) {
		return json.RawMessage(arg)
	}
	return arg
}

type listedEntry struct {
	Key       string `json:"key"`
	Value     any    `json:"value"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

func printEntriesJSON(cmd *cobra.Command, entries []kv.Entry) error {
	out := make([]listedEntry, 0, len(entries))
	for _, e := range entries {
		item := listedEntry{Key: e.Key, Value: e.Value}
		if !e.ExpiresAt.IsZero() {
			ms := e.ExpiresAt.UnixMilli()
			item.ExpiresAt = &ms
		}
		out = append(out, item)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(out)
}

func printEntriesTable(cmd *cobra.Command, entries []kv.Entry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tEXPIRES")
	for _, e := range entries {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return err
		}
		expires := "-"
		if !e.ExpiresAt.IsZero() {
			expires = e.ExpiresAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, value, expires)
	}
	return w.Flush()
}
