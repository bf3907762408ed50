package dbtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weblate/abrechnung/internal/migrations"
)

const (
	seedQuery  = "insert into password_setting (algorithm, rounds) values ('bf', 4)"
	resetQuery = "delete from password_setting where algorithm = 'bf' and rounds = 4"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	f := newFakeConn()
	out := &bytes.Buffer{}

	var ran []string
	module := func(name string) Module {
		return Module{Name: name, Run: func(ctx context.Context, s *Session) error {
			ran = append(ran, name)
			_, err := s.Fetch(ctx, SQL("select "+name))
			return err
		}}
	}

	err := Run(ctx, Options{
		Modules: []Module{module("first"), module("second")},
		Dial:    f.dial,
		Out:     out,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, []string{seedQuery, "select first", "select second", resetQuery}, f.queries)
	assert.True(t, f.closed)

	text := out.String()
	assert.Less(t, strings.Index(text, "first.test"), strings.Index(text, "second.test"))
	assert.Contains(t, text, "tests done")
	assert.NotContains(t, text, "prepare action")
	assert.NotContains(t, text, "populating")
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	f := newFakeConn()
	out := &bytes.Buffer{}

	thirdRan := false
	err := Run(ctx, Options{
		Modules: []Module{
			{Name: "ok", Run: func(context.Context, *Session) error { return nil }},
			{Name: "broken", Run: func(_ context.Context, s *Session) error {
				_, err := s.Expect(1, 2)
				return err
			}},
			{Name: "never", Run: func(context.Context, *Session) error { thirdRan = true; return nil }},
		},
		Dial:   f.dial,
		Out:    out,
		Logger: quietLogger(),
	})

	require.Error(t, err)
	assert.True(t, IsTestError(err))
	assert.Contains(t, err.Error(), "broken:")
	assert.False(t, thirdRan)
	assert.True(t, f.closed)
	assert.Equal(t, []string{seedQuery, resetQuery}, f.queries)
	assert.NotContains(t, out.String(), "tests done")
	assert.NotContains(t, out.String(), "closed unexpectedly")
}

func TestRun_CallbackFailureEndsModule(t *testing.T) {
	ctx := context.Background()
	f := newFakeConn()

	err := Run(ctx, Options{
		Modules: []Module{{Name: "dropped", Run: func(context.Context, *Session) error {
			f.h.OnClose(f)
			return nil
		}}},
		Dial:   f.dial,
		Out:    io.Discard,
		Logger: quietLogger(),
	})
	requireTestError(t, err, "psql connection closed unexpectedly")
}

func TestRun_PrepareAction(t *testing.T) {
	ctx := context.Background()

	t.Run("runs before connecting", func(t *testing.T) {
		f := newFakeConn()
		out := &bytes.Buffer{}
		var prepared string
		dialed := false

		err := Run(ctx, Options{
			PrepareAction: "rebuild",
			Prepare: func(_ context.Context, action string) error {
				prepared = action
				assert.False(t, dialed)
				return nil
			},
			Modules: []Module{},
			Dial: func(ctx context.Context, dsn string, h Handlers) (Conn, error) {
				dialed = true
				return f.dial(ctx, dsn, h)
			},
			Out:    out,
			Logger: quietLogger(),
		})
		require.NoError(t, err)
		assert.Equal(t, "rebuild", prepared)
		assert.Contains(t, out.String(), "prepare action: "+bold+"rebuild"+normal)
	})

	t.Run("failure aborts", func(t *testing.T) {
		out := &bytes.Buffer{}
		err := Run(ctx, Options{
			PrepareAction: "rebuild",
			Prepare:       func(context.Context, string) error { return errors.New("exit status 1") },
			Dial: func(context.Context, string, Handlers) (Conn, error) {
				t.Fatal("dialed after a failed prepare action")
				return nil, nil
			},
			Out:    out,
			Logger: quietLogger(),
		})
		require.ErrorIs(t, err, ErrPrepareFailed)
		assert.Contains(t, out.String(), "action failed; aborting tests")
	})
}

func TestRun_DialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	err := Run(context.Background(), Options{
		Dial: func(context.Context, string, Handlers) (Conn, error) {
			return nil, dialErr
		},
		Out:    io.Discard,
		Logger: quietLogger(),
	})
	require.ErrorIs(t, err, dialErr)
}

func TestRun_PopulateReportsFailures(t *testing.T) {
	out := &bytes.Buffer{}
	err := Run(context.Background(), Options{
		Populate: true,
		Modules:  []Module{},
		Dial:     newFakeConn().dial,
		Out:      out,
		Logger:   quietLogger(),
	})

	// the fake answers nothing, so the first registration finds no rows
	requireTestError(t, err, "expected 1 rows, but got 0 rows")
	assert.Contains(t, err.Error(), "populate:")
	assert.Contains(t, out.String(), "populating db with test data")
}

func TestDefaultModules(t *testing.T) {
	var names []string
	for _, m := range DefaultModules() {
		names = append(names, m.Name)
		assert.NotNil(t, m.Run)
	}
	assert.Equal(t, []string{"websocket_connections", "user_accounts", "subscriptions", "groups", "group_data"}, names)
}

// TestRun_Integration rebuilds the schema of the database at DATABASE_URL
// and runs every module against it.
func TestRun_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	out := &bytes.Buffer{}
	err := Run(ctx, Options{
		DSN:           dsn,
		PrepareAction: "rebuild",
		Prepare: func(ctx context.Context, action string) error {
			return migrations.Run(ctx, dsn, action, quietLogger())
		},
		Populate: true,
		Out:      out,
		Logger:   quietLogger(),
	})
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "tests done")
}
