// Command localdb inspects and edits the embedded catalog store outside the
// running service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"muhuratai/internal/util"
	"muhuratai/pkg/localdb"
	"muhuratai/pkg/storage"
)

type options struct {
	dir          string
	snapshotDir  string
	seedPassword string
	limit        int
	offset       int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "localdb",
		Short:        "Inspect and edit the embedded catalog store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "working directory of the live database (default: temp dir)")
	root.PersistentFlags().StringVar(&opts.snapshotDir, "snapshot-dir", envOr("SNAPSHOT_DIR", "data/localdb"), "directory holding the durable snapshot")
	root.PersistentFlags().StringVar(&opts.seedPassword, "seed-password", os.Getenv("LOCALDB_SEED_PASSWORD"), "password hashed into seeded users")

	root.AddCommand(
		&cobra.Command{
			Use:   "bootstrap",
			Short: "Create missing tables and columns and reseed empty tables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openStore(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer db.Close()
				res, err := db.Bootstrap(cmd.Context())
				if err != nil {
					return err
				}
				if !res.Changed() {
					fmt.Fprintln(cmd.OutOrStdout(), "already up to date")
					return nil
				}
				return printJSON(cmd, res)
			},
		},
		&cobra.Command{
			Use:   "tables",
			Short: "List tables with their row counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd.Context(), opts, func(db *localdb.Store) error {
					for _, name := range db.Tables() {
						n, err := db.Count(cmd.Context(), name)
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%-18s %d\n", name, n)
					}
					return nil
				})
			},
		},
		rowsCmd(opts),
		&cobra.Command{
			Use:   "insert <table> key=value...",
			Short: "Insert one row and print its id",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				row, err := parseAssignments(args[1:])
				if err != nil {
					return err
				}
				return withStore(cmd.Context(), opts, func(db *localdb.Store) error {
					id, err := db.Insert(cmd.Context(), args[0], row)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), id)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "update <table> <id> key=value...",
			Short: "Update fields of one row",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				fields, err := parseAssignments(args[2:])
				if err != nil {
					return err
				}
				return withStore(cmd.Context(), opts, func(db *localdb.Store) error {
					return db.Update(cmd.Context(), args[0], args[1], fields)
				})
			},
		},
	)
	return root
}

func rowsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rows <table>",
		Short: "Print rows of a table as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(db *localdb.Store) error {
				rows, err := db.Rows(cmd.Context(), args[0], opts.limit, opts.offset)
				if err != nil {
					return err
				}
				return printJSON(cmd, rows)
			})
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "maximum rows to print")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "rows to skip")
	return cmd
}

// withStore opens the store, brings its schema up to date and runs fn.
func withStore(ctx context.Context, opts *options, fn func(*localdb.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return fn(db)
}

func openStore(ctx context.Context, opts *options) (*localdb.Store, error) {
	var sink storage.Sink
	if opts.snapshotDir != "" {
		fileSink, err := storage.NewFileSink(opts.snapshotDir)
		if err != nil {
			return nil, err
		}
		sink = fileSink
	}
	return localdb.Open(ctx, localdb.Options{
		Sink:         sink,
		Dir:          opts.dir,
		SeedPassword: opts.seedPassword,
		Logger:       util.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL")),
	})
}

func parseAssignments(args []string) (localdb.Row, error) {
	row := make(localdb.Row, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		row[key] = value
	}
	return row, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
