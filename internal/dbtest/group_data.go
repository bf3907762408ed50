package dbtest

import (
	"context"
	"fmt"
)

func testGroupData(ctx context.Context, s *Session) error {
	sc := newScript(ctx, s)

	writer, token := sc.user("writer@example.com", "writer", "supersecret")
	reader, _ := sc.user("reader@example.com", "reader", "supersecret")
	group := sc.val(SQL("select group_create($1, 'Trip', '', '€')", writer))
	sc.exec(SQL("select group_add_member($1, $2, $3, false)", writer, group, reader))

	connection, channel := sc.connect("dbtest_forwarder", token)
	sc.listen(channel)
	sc.raise(SQL("select subscribe($1, 'account', $2)", connection, 1337), "no-group-permission")
	sc.exec(SQL("select subscribe($1, 'account', $2)", connection, group))
	sc.exec(SQL("select subscribe($1, 'transaction', $2)", connection, group))
	sc.quiet()

	// accounts
	sc.raise(SQL("select account_create($1, $2, 'Mallory', '')", reader, group), "no-group-permission")
	sc.raise(SQL("select account_create($1, $2, '', '')", writer, group), "bad-account-name")

	alice := sc.val(SQL("select account_create($1, $2, 'Alice', '')", writer, group), Column("account_create"))
	sc.expectNotification(channel, connection, "account", map[string]any{
		"group_id": group, "account_id": fmt.Sprint(alice),
	})
	bob := sc.val(SQL("select account_create($1, $2, 'Bob', 'pays for fuel')", writer, group))
	sc.expectNotification(channel, connection, "account", map[string]any{
		"group_id": group, "account_id": fmt.Sprint(bob),
	})

	sc.random(
		sc.vals(SQL("select name from account where grp = $1", group)),
		[]any{"Bob", "Alice"},
	)

	// transactions
	create := func(user any, typ string, value float64) Stmt {
		return SQL("select transaction_create($1, $2, $3, $4, $5, $6, $7)", user, group, typ, "groceries", value, "€", 1.0)
	}

	sc.raise(create(reader, "purchase", 12.5), "no-group-permission")
	sc.fails(create(writer, "gift", 12.5), CheckViolation, "transaction_type_check")
	sc.fails(create(writer, "purchase", 0), CheckViolation, "transaction_value_check")
	sc.quiet()

	tx := sc.val(create(writer, "purchase", 12.5), Column("transaction_create"))
	sc.expectNotification(channel, connection, "transaction", map[string]any{
		"group_id": group, "transaction_id": tx,
	})
	sc.row(
		SQL("select type, description, value, currency_symbol, currency_conversion_rate, committed from transaction where id = $1", tx),
		Expecting([]any{"purchase", "groceries", 12.5, "€", 1.0, false}),
	)

	sc.raise(SQL("select transaction_commit($1, $2)", writer, tx), "incomplete-transaction")
	sc.raise(SQL("select transaction_commit($1, $2)", writer, 1337), "transaction-not-found")

	shareArgs := func(kind string, account any) map[string]any {
		return map[string]any{
			"group_id": group, "transaction_id": tx, "account_id": fmt.Sprint(account), "share": kind + "_share",
		}
	}
	set := func(user any, kind string, account any, value float64) Stmt {
		return SQL("select transaction_share_set($1, $2, $3, $4, $5)", user, tx, kind, account, value)
	}

	sc.raise(set(writer, "lender", alice, 1), "bad-share-kind")
	sc.raise(set(reader, "creditor", alice, 1), "no-group-permission")
	sc.fails(set(writer, "creditor", alice, -1), CheckViolation, "creditor_share_value_check")

	sc.exec(set(writer, "creditor", alice, 1))
	sc.expectNotification(channel, connection, "transaction", shareArgs("creditor", alice))

	sc.exec(set(writer, "debitor", alice, 1))
	sc.exec(set(writer, "debitor", bob, 2))
	got := sc.notifications(2)
	if sc.err == nil {
		sc.expect(got[0].Payload, map[string]any{
			"connection_id": connection, "event": "transaction", "args": shareArgs("debitor", alice),
		})
		sc.expect(got[1].Payload, map[string]any{
			"connection_id": connection, "event": "transaction", "args": shareArgs("debitor", bob),
		})
	}

	// changing a value updates in place
	sc.exec(set(writer, "debitor", bob, 3))
	sc.expectNotification(channel, connection, "transaction", shareArgs("debitor", bob))
	sc.val(SQL("select value from debitor_share where transaction_id = $1 and account_id = $2", tx, bob), Expecting(3))

	// switching makes bob the only creditor: alice's share goes, bob's comes
	sc.exec(SQL("select transaction_share_switch($1, $2, 'creditor', $3, $4)", writer, tx, bob, 1.0))
	sc.notifications(2)
	sc.vals(SQL("select account_id from creditor_share where transaction_id = $1", tx), Expecting([]any{bob}))

	sc.exec(SQL("select transaction_share_delete($1, $2, 'debitor', $3)", writer, tx, alice))
	sc.expectNotification(channel, connection, "transaction", shareArgs("debitor", alice))
	sc.raise(SQL("select transaction_share_delete($1, $2, 'debitor', $3)", writer, tx, alice), "share-not-found")
	sc.val(SQL("select count(*) from debitor_share where transaction_id = $1", tx), Expecting(1))

	// commit
	sc.raise(SQL("select transaction_commit($1, $2)", reader, tx), "no-group-permission")
	sc.exec(SQL("select transaction_commit($1, $2)", writer, tx))
	sc.expectNotification(channel, connection, "transaction", map[string]any{
		"group_id": group, "transaction_id": tx,
	})
	sc.raise(SQL("select transaction_commit($1, $2)", writer, tx), "transaction-committed")
	sc.raise(set(writer, "debitor", alice, 1), "transaction-committed")
	sc.val(SQL("select committed from transaction where id = $1", tx), Expecting(true))

	sc.random(
		sc.vals(SQL("select type from group_log where grp = $1", group)),
		[]any{"transaction-committed", "member-added", "transaction-created", "group-created"},
	)

	sc.exec(SQL("select client_disconnected($1, $2)", connection, "dbtest_forwarder"))
	sc.unlisten(channel)

	return sc.err
}
