package dbtest

import (
	"context"
	"fmt"
)

// script runs harness steps against a session and keeps the first error.
// Once a step failed, later steps do nothing and return zero values.
type script struct {
	ctx context.Context
	s   *Session
	err error
}

func newScript(ctx context.Context, s *Session) *script {
	return &script{ctx: ctx, s: s}
}

func (sc *script) exec(stmt Stmt, opts ...FetchOption) []Row {
	if sc.err != nil {
		return nil
	}
	rows, err := sc.s.Fetch(sc.ctx, stmt, opts...)
	sc.err = err
	return rows
}

func (sc *script) row(stmt Stmt, opts ...FetchOption) Row {
	if sc.err != nil {
		return Row{}
	}
	row, err := sc.s.FetchRow(sc.ctx, stmt, opts...)
	sc.err = err
	return row
}

func (sc *script) val(stmt Stmt, opts ...FetchOption) any {
	if sc.err != nil {
		return nil
	}
	v, err := sc.s.FetchVal(sc.ctx, stmt, opts...)
	sc.err = err
	return v
}

func (sc *script) vals(stmt Stmt, opts ...FetchOption) []any {
	if sc.err != nil {
		return nil
	}
	v, err := sc.s.FetchVals(sc.ctx, stmt, opts...)
	sc.err = err
	return v
}

func (sc *script) raise(stmt Stmt, errorID string) {
	if sc.err != nil {
		return
	}
	sc.err = sc.s.FetchExpectRaise(sc.ctx, stmt, errorID)
}

func (sc *script) fails(stmt Stmt, kind ErrorKind, pattern string) {
	if sc.err != nil {
		return
	}
	sc.err = sc.s.FetchExpectError(sc.ctx, stmt, kind, pattern)
}

func (sc *script) expect(actual, expected any) {
	if sc.err != nil {
		return
	}
	_, sc.err = sc.s.Expect(actual, expected)
}

func (sc *script) random(actual, expected any) {
	if sc.err != nil {
		return
	}
	sc.err = sc.s.ExpectRandom(actual, expected)
}

func (sc *script) listen(channel string) {
	if sc.err != nil {
		return
	}
	sc.err = sc.s.Listen(sc.ctx, channel)
}

func (sc *script) unlisten(channel string) {
	if sc.err != nil {
		return
	}
	sc.err = sc.s.Unlisten(sc.ctx, channel)
}

func (sc *script) notification() Notification {
	if sc.err != nil {
		return Notification{}
	}
	n, err := sc.s.GetNotification(sc.ctx, true)
	sc.err = err
	return n
}

func (sc *script) notifications(count int) []Notification {
	if sc.err != nil {
		return nil
	}
	n, err := sc.s.GetNotifications(sc.ctx, count)
	sc.err = err
	return n
}

func (sc *script) quiet() {
	if sc.err != nil {
		return
	}
	sc.err = sc.s.ExpectNoNotification(sc.ctx, GraceWindow)
}

// expectNotification checks one pushed event for connection on channel.
func (sc *script) expectNotification(channel string, connection any, event string, args map[string]any) {
	n := sc.notification()
	sc.expect(n.Channel, channel)
	sc.expect(n.Payload, map[string]any{
		"connection_id": connection,
		"event":         event,
		"args":          args,
	})
}

// user registers a user and logs them in, returning the id and a session token.
func (sc *script) user(email, username, password string) (id, token any) {
	id = sc.val(SQL("select user_register($1, $2, $3)", email, username, password), Column("user_register"))
	token = sc.val(SQL("select user_login($1, $2, $3)", email, password, "dbtest"), Column("user_login"))
	return id, token
}

// connect boots forwarder, opens a connection authenticated with token and
// returns its id and the forwarder's notification channel.
func (sc *script) connect(forwarder string, token any) (connection any, channel string) {
	number := sc.val(SQL("select forwarder_boot($1)", forwarder), Column("forwarder_boot"))
	connection = sc.val(SQL("select client_connected($1)", forwarder), Column("client_connected"))
	if token != nil {
		sc.val(SQL("select client_authenticate($1, $2)", connection, token))
	}
	return connection, fmt.Sprintf("channel%v", number)
}
