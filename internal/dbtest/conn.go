package dbtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Conn is the single store connection a Session drives.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)
	Listen(ctx context.Context, channel string) error
	Unlisten(ctx context.Context, channel string) error

	// WaitForNotification reads from the connection until one notification
	// has been handed to Handlers.OnNotification or ctx expires. An expired
	// deadline is not an error.
	WaitForNotification(ctx context.Context) error

	PID() uint32
	Close(ctx context.Context) error
}

// Handlers are the callbacks a Conn invokes. source is the Conn itself.
type Handlers struct {
	OnNotification func(source any, pid uint32, channel, payload string)
	OnNotice       func(source any, message string)
	OnClose        func(source any)
}

// DialFunc opens a Conn that reports to h.
type DialFunc func(ctx context.Context, dsn string, h Handlers) (Conn, error)

type pgConn struct {
	conn      *pgx.Conn
	handlers  Handlers
	closeOnce sync.Once
}

// Dial connects to Postgres. Notifications and notices are delivered to h
// while a query runs or while WaitForNotification pumps the connection.
func Dial(ctx context.Context, dsn string, h Handlers) (Conn, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	c := &pgConn{handlers: h}
	cfg.OnNotification = func(_ *pgconn.PgConn, n *pgconn.Notification) {
		if c.handlers.OnNotification != nil {
			c.handlers.OnNotification(c, n.PID, n.Channel, n.Payload)
		}
	}
	cfg.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		if c.handlers.OnNotice != nil {
			c.handlers.OnNotice(c, n.Message)
		}
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *pgConn) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.checkClosed(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, c.checkClosed(err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		out = append(out, NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, c.checkClosed(err)
	}
	return out, nil
}

func (c *pgConn) Listen(ctx context.Context, channel string) error {
	_, err := c.conn.Exec(ctx, "listen "+pgx.Identifier{channel}.Sanitize())
	return c.checkClosed(err)
}

func (c *pgConn) Unlisten(ctx context.Context, channel string) error {
	_, err := c.conn.Exec(ctx, "unlisten "+pgx.Identifier{channel}.Sanitize())
	return c.checkClosed(err)
}

func (c *pgConn) WaitForNotification(ctx context.Context) error {
	err := c.conn.PgConn().WaitForNotification(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && (pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return c.checkClosed(err)
}

func (c *pgConn) PID() uint32 {
	return c.conn.PgConn().PID()
}

func (c *pgConn) Close(ctx context.Context) error {
	err := c.conn.Close(ctx)
	c.fireClose()
	return err
}

// checkClosed passes err through, firing OnClose if the connection died.
func (c *pgConn) checkClosed(err error) error {
	if err != nil && c.conn.IsClosed() {
		c.fireClose()
	}
	return err
}

func (c *pgConn) fireClose() {
	c.closeOnce.Do(func() {
		if c.handlers.OnClose != nil {
			c.handlers.OnClose(c)
		}
	})
}

// normalize turns driver representations into the values tests compare
// against: UUIDs as uuid.UUID and numerics as float64.
func normalize(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
