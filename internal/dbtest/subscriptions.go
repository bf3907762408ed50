package dbtest

import "context"

func testSubscriptions(ctx context.Context, s *Session) error {
	sc := newScript(ctx, s)

	uid, token := sc.user("sub@example.com", "sub", "supersecret")
	connection, channel := sc.connect("dbtest_forwarder", nil)
	sc.listen(channel)

	notifyTest := func(element int, args string) Stmt {
		return SQL("select notify_subscribers('test', $1, $2::text::json)", element, args)
	}

	sc.raise(SQL("select subscribe($1, 'test', 42)", connection), "not-authenticated")
	sc.raise(SQL("select subscribe($1, 'test', 42)", 1337), "bad-connection-id")
	sc.val(SQL("select client_authenticate($1, $2)", connection, token), Expecting(uid))

	sc.raise(SQL("select subscribe($1, 'weather', 42)", connection), "bad-subscription-type")
	sc.raise(SQL("select subscribe($1, 'group', $2)", connection, 1337), "bad-subscription")
	sc.raise(SQL("select subscribe($1, 'transaction', $2)", connection, 1337), "no-group-permission")

	sc.exec(SQL("select subscribe($1, 'test', 42)", connection))
	sc.quiet()

	sc.exec(notifyTest(42, `{"a": 1}`))
	sc.expectNotification(channel, connection, "test", map[string]any{"a": 1})

	// other elements stay silent
	sc.exec(notifyTest(43, `{"a": 2}`))
	sc.quiet()

	// subscribing twice still notifies once
	sc.exec(SQL("select subscribe($1, 'test', 42)", connection))
	sc.val(SQL("select count(*) from subscription where connection_id = $1", connection), Expecting(1))

	sc.exec(notifyTest(42, `{"a": 3}`))
	sc.exec(notifyTest(42, `{"a": 4}`))
	got := sc.notifications(2)
	if sc.err == nil {
		sc.expect(got[0].Payload, map[string]any{
			"connection_id": connection, "event": "test", "args": map[string]any{"a": 3},
		})
		sc.expect(got[1].Payload, map[string]any{
			"connection_id": connection, "event": "test", "args": map[string]any{"a": 4},
		})
	}

	sc.exec(SQL("select unsubscribe($1, 'test', 42)", connection))
	sc.exec(notifyTest(42, `{"a": 5}`))
	sc.quiet()

	// closing a connection drops its subscriptions
	sc.exec(SQL("select subscribe($1, 'test', 42)", connection))
	sc.exec(SQL("select client_disconnected($1, $2)", connection, "dbtest_forwarder"))
	sc.val(SQL("select count(*) from subscription where connection_id = $1", connection), Expecting(0))
	sc.exec(notifyTest(42, `{"a": 6}`))
	sc.quiet()

	// nothing is delivered once unlistened
	second, _ := sc.connect("dbtest_forwarder", token)
	sc.exec(SQL("select subscribe($1, 'test', 7)", second))
	sc.unlisten(channel)
	sc.exec(notifyTest(7, `{"a": 7}`))
	sc.quiet()
	sc.exec(SQL("select client_disconnected($1, $2)", second, "dbtest_forwarder"))

	return sc.err
}
