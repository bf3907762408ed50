package dbtest

import "context"

func testGroups(ctx context.Context, s *Session) error {
	sc := newScript(ctx, s)

	owner, token := sc.user("owner@example.com", "owner", "supersecret")
	member, _ := sc.user("member@example.com", "member", "supersecret")

	connection, channel := sc.connect("dbtest_forwarder", token)
	sc.listen(channel)
	sc.exec(SQL("select subscribe($1, 'group', $2)", connection, owner))

	create := func(user any, name, symbol string) Stmt {
		return SQL("select group_create($1, $2, $3, $4)", user, name, "dbtest group", symbol)
	}

	sc.raise(create(owner, "WG", ""), "bad-currency-symbol")
	sc.raise(create(owner, "WG", "EURO€"), "bad-currency-symbol")
	sc.raise(create(owner, "   ", "€"), "bad-group-name")
	sc.quiet()

	group := sc.val(create(owner, "WG", "€"), Column("group_create"))
	sc.expectNotification(channel, connection, "group", map[string]any{"group_id": group})

	sc.row(
		SQL("select name, description, currency_symbol, created_by from grp where id = $1", group),
		Columns("name", "description", "currency_symbol", "created_by"),
		Expecting([]any{"WG", "dbtest group", "€", owner}),
	)
	sc.row(
		SQL("select is_owner, can_write from group_membership where usr = $1 and grp = $2", owner, group),
		Expecting([]any{true, true}),
	)

	update := func(user any, name string) Stmt {
		return SQL("select group_update($1, $2, $3, $4, $5)", user, group, name, "renamed", "€")
	}

	sc.raise(update(member, "Not mine"), "no-group-permission")
	sc.raise(update(owner, ""), "bad-group-name")
	sc.quiet()

	sc.exec(update(owner, "WG 2"))
	sc.expectNotification(channel, connection, "group", map[string]any{"group_id": group})
	sc.val(SQL("select name from grp where id = $1", group), Expecting("WG 2"))

	// membership changes reach group_membership subscribers of the group
	sc.exec(SQL("select subscribe($1, 'group_membership', $2)", connection, group))
	sc.raise(SQL("select group_add_member($1, $2, $3, false)", member, group, member), "no-group-permission")
	sc.exec(SQL("select group_add_member($1, $2, $3, false)", owner, group, member))
	sc.expectNotification(channel, connection, "group_membership", map[string]any{"group_id": group, "user_id": member})
	sc.raise(SQL("select group_add_member($1, $2, $3, true)", owner, group, member), "already-member")

	sc.row(
		SQL("select is_owner, can_write from group_membership where usr = $1 and grp = $2", member, group),
		Expecting([]any{false, false}),
	)

	// readers may look but not change
	sc.raise(update(member, "WG 3"), "no-group-permission")
	sc.raise(SQL("select group_add_member($1, $2, $3, true)", member, group, owner), "no-group-permission")

	sc.random(
		sc.vals(SQL("select type from group_log where grp = $1", group), Column("type")),
		[]any{"group-created", "group-updated", "member-added"},
	)

	sc.exec(SQL("select client_disconnected($1, $2)", connection, "dbtest_forwarder"))
	sc.unlisten(channel)

	return sc.err
}
