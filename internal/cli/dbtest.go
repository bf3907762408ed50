package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/weblate/abrechnung/internal/dbtest"
	"github.com/weblate/abrechnung/internal/migrations"
)

// Overridden in tests.
var (
	runDBTest = dbtest.Run
	runAction = migrations.Run
)

// DBTestOptions holds flags for the dbtest command.
type DBTestOptions struct {
	*RootOptions
	Confirm       bool
	PrepareAction string
	Populate      bool
}

// NewDBTestCommand creates the dbtest command.
func NewDBTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DBTestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dbtest",
		Short: "Run the database integration tests",
		Long: `Run the database integration tests against the configured database.

The tests write to the database and may leave data behind, so they must
never run against a production database. --confirm-destructive-test is
required.

Example:
  dbtest --config abrechnung.yaml --confirm-destructive-test --prepare-action rebuild
  dbtest --config abrechnung.yaml --confirm-destructive-test --populate`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Confirm, "confirm-destructive-test", false, "confirm that the database may be modified")
	cmd.Flags().StringVar(&opts.PrepareAction, "prepare-action", "", "maintenance action to run before the tests (e.g. rebuild)")
	cmd.Flags().BoolVar(&opts.Populate, "populate", false, "fill the database with example data after the tests")
	_ = cmd.MarkFlagRequired("confirm-destructive-test")

	return cmd
}

func runTests(cmd *cobra.Command, opts *DBTestOptions) error {
	if !opts.Confirm {
		return NewExitError(ExitCommandError, "refusing to run without --confirm-destructive-test")
	}
	if opts.PrepareAction != "" {
		if _, err := migrations.Lookup(opts.PrepareAction); err != nil {
			return WrapExitError(ExitCommandError, "invalid prepare action", err)
		}
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	dsn := cfg.DSN()
	logger := opts.logger(cmd.ErrOrStderr())

	err = runDBTest(ctx, dbtest.Options{
		DSN:           dsn,
		PrepareAction: opts.PrepareAction,
		Prepare: func(ctx context.Context, action string) error {
			return runAction(ctx, dsn, action, logger)
		},
		Populate: opts.Populate,
		Out:      cmd.OutOrStdout(),
		Logger:   logger,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dbtest.ErrPrepareFailed):
		return WrapExitError(ExitFailure, "prepare action failed", err)
	case dbtest.IsTestError(err):
		return WrapExitError(ExitFailure, "tests failed", err)
	}
	return WrapExitError(ExitFailure, "test run aborted", err)
}
