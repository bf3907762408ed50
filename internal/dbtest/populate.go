package dbtest

import "context"

type exampleShare struct {
	account string
	value   float64
}

type exampleTransaction struct {
	description string
	value       float64
	creditors   []exampleShare
	debitors    []exampleShare
}

// populate fills the database with a small example group so that a fresh
// development database has something to show.
func populate(ctx context.Context, s *Session) error {
	sc := newScript(ctx, s)

	alice := sc.val(SQL("select user_register($1, $2, $3)", "alice@example.com", "alice", "password"))
	bob := sc.val(SQL("select user_register($1, $2, $3)", "bob@example.com", "bob", "password"))

	group := sc.val(SQL("select group_create($1, $2, $3, $4)", alice, "Holiday", "the summer trip", "€"))
	sc.exec(SQL("select group_add_member($1, $2, $3, true)", alice, group, bob))

	accounts := map[string]any{}
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		accounts[name] = sc.val(SQL("select account_create($1, $2, $3, '')", alice, group, name))
	}

	examples := []exampleTransaction{
		{
			description: "groceries",
			value:       42.5,
			creditors:   []exampleShare{{"Alice", 1}},
			debitors:    []exampleShare{{"Alice", 1}, {"Bob", 1}, {"Carol", 1}},
		},
		{
			description: "fuel",
			value:       60,
			creditors:   []exampleShare{{"Bob", 1}},
			debitors:    []exampleShare{{"Alice", 1}, {"Bob", 2}},
		},
	}

	for _, ex := range examples {
		tx := sc.val(SQL("select transaction_create($1, $2, 'purchase', $3, $4, '€', 1.0)", alice, group, ex.description, ex.value))
		for _, share := range ex.creditors {
			sc.exec(SQL("select transaction_share_set($1, $2, 'creditor', $3, $4)", alice, tx, accounts[share.account], share.value))
		}
		for _, share := range ex.debitors {
			sc.exec(SQL("select transaction_share_set($1, $2, 'debitor', $3, $4)", alice, tx, accounts[share.account], share.value))
		}
		sc.exec(SQL("select transaction_commit($1, $2)", alice, tx))
	}

	// an uncommitted draft
	sc.val(SQL("select transaction_create($1, $2, 'transfer', 'bob pays back', 10, '€', 1.0)", bob, group))

	return sc.err
}
