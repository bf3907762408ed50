package dbtest

import "context"

func testWebsocketConnections(ctx context.Context, s *Session) error {
	sc := newScript(ctx, s)

	channel := sc.val(SQL("select forwarder_boot($1)", "dbtest_forwarder"), Column("forwarder_boot"))
	sc.val(SQL("select channel_number from forwarder where id = $1", "dbtest_forwarder"), Expecting(channel))

	sc.raise(SQL("select client_disconnected($1, $2)", 1337, "dbtest_forwarder"), "bad-connection-id")
	sc.fails(SQL("select client_connected($1)", "no_such_forwarder"), ForeignKeyViolation, "connection_forwarder_fkey")

	first := sc.val(SQL("select client_connected($1)", "dbtest_forwarder"), Column("client_connected"))
	second := sc.val(SQL("select client_connected($1)", "dbtest_forwarder"), Column("client_connected"))
	sc.expect(first == second, false)

	sc.random(
		sc.vals(SQL("select id from connection where forwarder = $1", "dbtest_forwarder"), Column("id")),
		[]any{first, second},
	)

	sc.row(
		SQL("select forwarder, usr from connection where id = $1", first),
		Columns("forwarder", "usr"),
		Expecting([]any{"dbtest_forwarder", nil}),
	)

	sc.exec(SQL("select client_disconnected($1, $2)", first, "dbtest_forwarder"), RowCount(1))
	sc.raise(SQL("select client_disconnected($1, $2)", first, "dbtest_forwarder"), "bad-connection-id")
	sc.val(SQL("select count(*) from connection where forwarder = $1", "dbtest_forwarder"), Expecting(1))

	// a rebooted forwarder keeps its channel and loses its connections
	sc.val(SQL("select forwarder_boot($1)", "dbtest_forwarder"), Expecting(channel))
	sc.val(SQL("select count(*) from connection where forwarder = $1", "dbtest_forwarder"), Expecting(0))

	// a second forwarder gets a channel of its own
	other := sc.val(SQL("select forwarder_boot($1)", "dbtest_forwarder_2"))
	sc.expect(other == channel, false)

	return sc.err
}
