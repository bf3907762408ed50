package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weblate/abrechnung/internal/migrations"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	List bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate [action]",
		Short: "Run a database maintenance action",
		Long: `Run a named maintenance action against the configured database.

Actions: ` + strings.Join(migrations.Actions(), ", ") + `. The default is "migrate".

Example:
  migrate --config abrechnung.yaml
  migrate --config abrechnung.yaml rebuild`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "migrate"
			if len(args) == 1 {
				action = args[0]
			}
			return runMigrate(cmd, opts, action)
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "list the known actions and exit")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions, action string) error {
	if opts.List {
		for _, name := range migrations.Actions() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	if _, err := migrations.Lookup(action); err != nil {
		return WrapExitError(ExitCommandError, "invalid action", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	logger := opts.logger(cmd.ErrOrStderr())
	if err := runAction(ctx, cfg.DSN(), action, logger); err != nil {
		return WrapExitError(ExitFailure, "maintenance action failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "action %s done\n", action)
	return nil
}
