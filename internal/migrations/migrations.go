// Package migrations owns the database schema and the maintenance actions
// that operate on it.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var schemaFS embed.FS

const tableName = "schema_migrations"

// Action is a named maintenance operation on the schema.
type Action func(ctx context.Context, db *sql.DB) error

var actions = map[string]Action{
	"migrate": up,
	"up":      up,
	"down":    down,
	"rebuild": rebuild,
	"status":  status,
}

// Actions lists the known action names in order.
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the action registered under name.
func Lookup(name string) (Action, error) {
	action, ok := actions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown action %q (known: %s)", name, strings.Join(Actions(), ", "))
	}
	return action, nil
}

// Run opens dsn and performs the named action.
func Run(ctx context.Context, dsn, name string, logger *slog.Logger) error {
	action, err := Lookup(name)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("error pinging database: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	goose.SetLogger(gooseLogger{logger: logger})

	logger.Info("running maintenance action", "action", name)
	if err := action(ctx, db); err != nil {
		return fmt.Errorf("action %s failed: %w", name, err)
	}
	return nil
}

func configure() error {
	goose.SetBaseFS(schemaFS)
	goose.SetTableName(tableName)
	return goose.SetDialect("postgres")
}

func up(ctx context.Context, db *sql.DB) error {
	if err := configure(); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "sql")
}

func down(ctx context.Context, db *sql.DB) error {
	if err := configure(); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, "sql")
}

// rebuild rolls every migration back and applies them again, leaving an
// empty schema at the latest version.
func rebuild(ctx context.Context, db *sql.DB) error {
	if err := configure(); err != nil {
		return err
	}
	if err := goose.ResetContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return goose.UpContext(ctx, db, "sql")
}

func status(ctx context.Context, db *sql.DB) error {
	if err := configure(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, "sql")
}

type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
