// Package dbtest drives the live database schema end to end: it runs
// scripted scenarios over one connection, listens for change
// notifications and checks the results.
package dbtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Module is one named group of scenarios.
type Module struct {
	Name string
	Run  func(ctx context.Context, s *Session) error
}

// DefaultModules returns the scenario modules in the order they must run.
func DefaultModules() []Module {
	return []Module{
		{Name: "websocket_connections", Run: testWebsocketConnections},
		{Name: "user_accounts", Run: testUserAccounts},
		{Name: "subscriptions", Run: testSubscriptions},
		{Name: "groups", Run: testGroups},
		{Name: "group_data", Run: testGroupData},
	}
}

// Options configures Run.
type Options struct {
	DSN string

	// PrepareAction names a maintenance action performed by Prepare
	// before connecting.
	PrepareAction string
	Prepare       func(ctx context.Context, action string) error

	// Populate fills the database with example data after the tests.
	Populate bool

	Modules []Module // DefaultModules() when nil
	Dial    DialFunc // Dial when nil
	Out     io.Writer
	Logger  *slog.Logger
}

// Run executes the modules in order and stops at the first failure.
func Run(ctx context.Context, opts Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	modules := opts.Modules
	if modules == nil {
		modules = DefaultModules()
	}
	dial := opts.Dial
	if dial == nil {
		dial = Dial
	}

	if opts.PrepareAction != "" {
		fmt.Fprintf(out, "prepare action: %s%s%s\n", bold, opts.PrepareAction, normal)
		if opts.Prepare == nil {
			fmt.Fprintln(out, "action failed; aborting tests")
			return fmt.Errorf("%w: no way to run %q", ErrPrepareFailed, opts.PrepareAction)
		}
		if err := opts.Prepare(ctx, opts.PrepareAction); err != nil {
			fmt.Fprintln(out, "action failed; aborting tests")
			return fmt.Errorf("%w: %v", ErrPrepareFailed, err)
		}
	}

	s := NewSession(out, logger)
	conn, err := dial(ctx, opts.DSN, s.Handlers())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	s.Attach(conn)
	defer s.Close(context.WithoutCancel(ctx))

	// hashing with few rounds keeps registration and login fast
	if _, err := s.Fetch(ctx, SQL("insert into password_setting (algorithm, rounds) values ('bf', 4)")); err != nil {
		return err
	}
	seeded := true
	defer func() {
		if !seeded {
			return
		}
		if err := resetPasswordSetting(context.WithoutCancel(ctx), s); err != nil {
			logger.Warn("could not remove test password setting", "error", err)
		}
	}()

	for _, m := range modules {
		fmt.Fprintf(out, "%s%s.test%s\n", bold, m.Name, normal)
		if err := m.Run(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		if err := s.Err(); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}

	seeded = false
	if err := resetPasswordSetting(ctx, s); err != nil {
		return err
	}

	fmt.Fprintf(out, "%stests done%s\n", bold, normal)

	if opts.Populate {
		fmt.Fprintf(out, "%spopulating db with test data%s\n", bold, normal)
		if err := populate(ctx, s); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	}

	return s.Close(ctx)
}

func resetPasswordSetting(ctx context.Context, s *Session) error {
	_, err := s.Fetch(ctx, SQL("delete from password_setting where algorithm = 'bf' and rounds = 4"))
	return err
}
