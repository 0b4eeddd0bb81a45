package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/datastore/internal/persistence"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Database    string
	RedisURL    string
	RedisPrefix string
	Key         string
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state [store]",
		Short: "Dump persisted store state",
		Long: `Print the state the persistence plugin saved under a storage key.

The storage is either a SQL database (--db, sqlite path or postgres:// or
mysql:// DSN) or Redis (--redis). With a store argument only that store's
state is printed.

Examples:
  datastore state --db ./datastore.db
  datastore state --db postgres://localhost/wp core/preferences
  datastore state --redis redis://localhost:6379/0 --key WP_DATA_1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := ""
			if len(args) == 1 {
				store = args[0]
			}
			return dumpState(cmd, opts, store)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQL storage DSN or sqlite path")
	cmd.Flags().StringVar(&opts.RedisURL, "redis", "", "Redis storage URL")
	cmd.Flags().StringVar(&opts.RedisPrefix, "redis-prefix", "", "Redis key prefix")
	cmd.Flags().StringVar(&opts.Key, "key", persistence.DefaultStorageKey, "storage key")
	cmd.MarkFlagsMutuallyExclusive("db", "redis")
	cmd.MarkFlagsOneRequired("db", "redis")

	return cmd
}

func dumpState(cmd *cobra.Command, opts *StateOptions, store string) error {
	out := newFormatter(cmd, opts.RootOptions)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	storage, closeFn, err := openStorage(ctx, opts)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStorage, "failed to open storage", err)
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			slog.Warn("error closing storage", "error", cerr)
		}
	}()

	raw, ok, err := storage.GetItem(ctx, opts.Key)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStorage, "failed to read state", err)
	}
	saved := map[string]json.RawMessage{}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			return out.Fail(ExitCommandError, ErrCodeStorage,
				fmt.Sprintf("stored value under %q is not a state object", opts.Key), err)
		}
	}
	out.VerboseLog("read %d store(s) under %s", len(saved), opts.Key)

	if store != "" {
		value, found := saved[store]
		if !found {
			return out.Fail(ExitCommandError, ErrCodeNotFound,
				fmt.Sprintf("no persisted state for store %q", store), nil)
		}
		saved = map[string]json.RawMessage{store: value}
	}

	if out.JSON() {
		return out.Success(saved)
	}
	return writeState(out.Writer, saved)
}

func openStorage(ctx context.Context, opts *StateOptions) (persistence.Storage, func() error, error) {
	if opts.RedisURL != "" {
		s, client, err := persistence.NewRedisStorageFromURL(opts.RedisURL, opts.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, client.Close, nil
	}
	s, err := persistence.OpenDSN(ctx, opts.Database)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func writeState(w io.Writer, saved map[string]json.RawMessage) error {
	if len(saved) == 0 {
		_, err := fmt.Fprintln(w, "No persisted state.")
		return err
	}
	names := make([]string, 0, len(saved))
	for name := range saved {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		var buf bytes.Buffer
		if err := json.Indent(&buf, saved[name], "", "  "); err != nil {
			return fmt.Errorf("store %s: %w", name, err)
		}
		fmt.Fprintf(w, "%s:\n%s\n", name, buf.String())
	}
	return nil
}
