package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"eventmatch/pkg/db"
	"eventmatch/services/directory"
	"eventmatch/services/matching"
	"eventmatch/services/stats"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openORM is replaced in tests.
var openORM = func(ctx context.Context, dsn string) (*gorm.DB, func(), error) {
	orm, err := db.OpenORM(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return orm, func() { _ = db.CloseORM(orm) }, nil
}

func newRootCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:           "matchctl",
		Short:         "Operator tooling for the event matching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("DB_DSN"), "Postgres connection string (defaults to $DB_DSN)")

	requireDSN := func() (string, error) {
		if strings.TrimSpace(dsn) == "" {
			return "", errors.New("--dsn or DB_DSN is required")
		}
		return dsn, nil
	}

	cmd.AddCommand(newMigrateCommand(requireDSN))
	cmd.AddCommand(newMembershipCommand("archive", "Archive every match of a user in an event", requireDSN,
		func(ctx context.Context, e *matching.Engine, eventID, userID int64) (any, error) {
			n, err := e.ArchiveForUser(ctx, eventID, userID)
			return map[string]int64{"archived": n}, err
		}))
	cmd.AddCommand(newMembershipCommand("unarchive", "Restore the matches of a user in an event", requireDSN,
		func(ctx context.Context, e *matching.Engine, eventID, userID int64) (any, error) {
			n, err := e.UnarchiveForUser(ctx, eventID, userID)
			return map[string]int64{"unarchived": n}, err
		}))
	cmd.AddCommand(newMembershipCommand("erase", "Delete the swipes, matches and messages of a user in an event", requireDSN,
		func(ctx context.Context, e *matching.Engine, eventID, userID int64) (any, error) {
			return e.DeleteForUser(ctx, eventID, userID)
		}))
	cmd.AddCommand(newStatsCommand(requireDSN))
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCommand(requireDSN func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := requireDSN()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

type membershipAction func(ctx context.Context, e *matching.Engine, eventID, userID int64) (any, error)

func newMembershipCommand(use, short string, requireDSN func() (string, error), action membershipAction) *cobra.Command {
	var eventID, userID int64

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventID <= 0 || userID <= 0 {
				return errors.New("--event and --user must be positive")
			}
			dsn, err := requireDSN()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			orm, closeORM, err := openORM(ctx, dsn)
			if err != nil {
				return err
			}
			defer closeORM()

			dir, err := directory.New(orm, nil, zerolog.Nop())
			if err != nil {
				return err
			}
			engine, err := matching.New(matching.Options{
				ORM:      orm,
				Gate:     dir,
				Events:   dir,
				Profiles: dir,
				Logger:   zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger(),
			})
			if err != nil {
				return err
			}

			out, err := action(ctx, engine, eventID, userID)
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Int64Var(&eventID, "event", 0, "Event id")
	cmd.Flags().Int64Var(&userID, "user", 0, "User id")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatsCommand(requireDSN func() (string, error)) *cobra.Command {
	var eventID int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print engagement figures for an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := requireDSN()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc, err := stats.New(pool)
			if err != nil {
				return err
			}
			figures, err := svc.Event(ctx, eventID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), figures)
		},
	}

	cmd.Flags().Int64Var(&eventID, "event", 0, "Event id")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
