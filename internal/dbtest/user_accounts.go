package dbtest

import (
	"context"

	"github.com/google/uuid"
)

func testUserAccounts(ctx context.Context, s *Session) error {
	sc := newScript(ctx, s)

	register := func(email, username, password string) Stmt {
		return SQL("select user_register($1, $2, $3)", email, username, password)
	}
	login := func(email, password string) Stmt {
		return SQL("select user_login($1, $2, $3)", email, password, "dbtest session")
	}

	sc.raise(register("foo", "foo", "supersecret"), "bad-email")
	sc.raise(register("foo@example.com", "foo", "short"), "password-too-short")

	uid := sc.val(register("foo@example.com", "foo", "supersecret"), Column("user_register"))
	sc.raise(register("foo@example.com", "foo2", "supersecret"), "user-exists")
	sc.raise(register("foo2@example.com", "foo", "supersecret"), "user-exists")
	sc.fails(
		SQL("insert into usr (email, username, password) values ($1, $2, 'x')", "foo@example.com", "bar"),
		UniqueViolation, "usr_email_key",
	)

	sc.row(
		SQL("select email, username from usr where id = $1", uid),
		Columns("email", "username"),
		Expecting([]any{"foo@example.com", "foo"}),
	)

	// the test run lowers the bcrypt cost to 4
	sc.val(
		SQL("select substring(password from 1 for 7) from usr where id = $1", uid),
		Expecting("$2a$04$"),
	)

	sc.raise(login("foo@example.com", "wrongpassword"), "bad-login")
	sc.raise(login("nobody@example.com", "supersecret"), "bad-login")

	token := sc.val(login("foo@example.com", "supersecret"), Column("user_login"))
	sc.expect(token, Matches("a session uuid", func(v any) bool {
		_, ok := v.(uuid.UUID)
		return ok
	}))
	sc.row(
		SQL("select usr, name from session where token = $1", token),
		Expecting([]any{uid, "dbtest session"}),
	)

	sc.val(SQL("select forwarder_boot($1)", "dbtest_forwarder"))
	connection := sc.val(SQL("select client_connected($1)", "dbtest_forwarder"))

	sc.raise(SQL("select client_authenticate($1, $2)", connection, uuid.New()), "bad-login")
	sc.raise(SQL("select client_authenticate($1, $2)", 1337, token), "bad-connection-id")
	sc.val(SQL("select client_authenticate($1, $2)", connection, token), Expecting(uid))
	sc.val(SQL("select usr from connection where id = $1", connection), Column("usr"), Expecting(uid))

	// expired sessions no longer authenticate
	sc.exec(SQL("update session set valid_until = now() - interval '1 minute' where token = $1", token))
	other := sc.val(SQL("select client_connected($1)", "dbtest_forwarder"))
	sc.raise(SQL("select client_authenticate($1, $2)", other, token), "bad-login")

	sc.exec(SQL("select client_disconnected($1, $2)", connection, "dbtest_forwarder"))
	sc.exec(SQL("select client_disconnected($1, $2)", other, "dbtest_forwarder"))

	return sc.err
}
