package dbtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

type push struct {
	channel string
	payload string
}

type result struct {
	rows []Row
	err  error
	push []push // delivered while the query runs
}

// fakeConn answers queries from a table and delivers pushes the way a
// real connection does: during a query or while being pumped.
type fakeConn struct {
	h         Handlers
	results   map[string]result
	later     []push
	listening map[string]bool
	queries   []string
	closed    bool
	source    any // what callbacks report as their origin; the conn itself when nil
}

func newFakeConn() *fakeConn {
	return &fakeConn{results: map[string]result{}, listening: map[string]bool{}}
}

func (f *fakeConn) on(query string, r result) *fakeConn {
	f.results[query] = r
	return f
}

func (f *fakeConn) origin() any {
	if f.source != nil {
		return f.source
	}
	return f
}

func (f *fakeConn) deliver(p push) {
	if f.listening[p.channel] && f.h.OnNotification != nil {
		f.h.OnNotification(f.origin(), 4242, p.channel, p.payload)
	}
}

func (f *fakeConn) Query(_ context.Context, sql string, _ ...any) ([]Row, error) {
	f.queries = append(f.queries, sql)
	r, ok := f.results[sql]
	if !ok {
		return nil, nil
	}
	for _, p := range r.push {
		f.deliver(p)
	}
	return r.rows, r.err
}

func (f *fakeConn) Listen(_ context.Context, channel string) error {
	f.listening[channel] = true
	return nil
}

func (f *fakeConn) Unlisten(_ context.Context, channel string) error {
	delete(f.listening, channel)
	return nil
}

func (f *fakeConn) WaitForNotification(ctx context.Context) error {
	if len(f.later) > 0 {
		p := f.later[0]
		f.later = f.later[1:]
		f.deliver(p)
		return nil
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConn) PID() uint32 { return 4242 }

func (f *fakeConn) Close(context.Context) error {
	f.closed = true
	if f.h.OnClose != nil {
		f.h.OnClose(f.origin())
	}
	return nil
}

func (f *fakeConn) dial(_ context.Context, _ string, h Handlers) (Conn, error) {
	f.h = h
	return f, nil
}

// newTestSession returns a session attached to a fresh fakeConn, plus the
// buffer receiving its output.
func newTestSession(t *testing.T) (*Session, *fakeConn, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	s := NewSession(out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f := newFakeConn()
	conn, err := f.dial(context.Background(), "", s.Handlers())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	s.Attach(conn)
	return s, f, out
}

func oneColumn(name string, values ...any) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = NewRow([]string{name}, []any{v})
	}
	return rows
}

func payload(v string) string { return fmt.Sprintf(`{"v": %q}`, v) }
