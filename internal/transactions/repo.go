package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weblate/abrechnung/internal/pgerr"
)

// Repo implements GroupReadService and TransactionService on top of the
// database functions, which do the permission checks.
type Repo struct {
	Pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

const selectTransaction = `
SELECT id, grp, type, description, value::float8, currency_symbol,
       currency_conversion_rate::float8, committed
FROM transaction
`

func (r *Repo) ListTransactions(ctx context.Context, userID, groupID int64) ([]Transaction, error) {
	if err := r.checkMember(ctx, userID, groupID); err != nil {
		return nil, err
	}

	rows, err := r.Pool.Query(ctx, selectTransaction+`WHERE grp = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, err
	}

	if err := r.loadShares(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetTransaction(ctx context.Context, userID, groupID, transactionID int64) (Transaction, error) {
	if err := r.checkMember(ctx, userID, groupID); err != nil {
		return Transaction{}, err
	}

	rows, err := r.Pool.Query(ctx, selectTransaction+`WHERE id = $1 AND grp = $2`, transactionID, groupID)
	if err != nil {
		return Transaction{}, err
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("%w: no transaction %d in group %d", pgerr.ErrNotFound, transactionID, groupID)
	}
	if err != nil {
		return Transaction{}, err
	}

	out := []Transaction{t}
	if err := r.loadShares(ctx, out); err != nil {
		return Transaction{}, err
	}
	return out[0], nil
}

func (r *Repo) CreateTransaction(ctx context.Context, userID, groupID int64, in NewTransaction) (int64, error) {
	var id int64
	err := r.Pool.QueryRow(ctx, `select transaction_create($1, $2, $3, $4, $5, $6, $7)`,
		userID, groupID, in.Type, in.Description, in.Value, in.CurrencySymbol, in.CurrencyConversionRate,
	).Scan(&id)
	if err != nil {
		return 0, pgerr.Translate(err)
	}
	return id, nil
}

func (r *Repo) CommitTransaction(ctx context.Context, userID, groupID, transactionID int64) error {
	if err := r.checkGroup(ctx, groupID, transactionID); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, `select transaction_commit($1, $2)`, userID, transactionID)
	return pgerr.Translate(err)
}

func (r *Repo) AddOrChangeShare(ctx context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID, value float64) error {
	if err := r.checkGroup(ctx, groupID, transactionID); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, `select transaction_share_set($1, $2, $3, $4, $5)`,
		userID, transactionID, string(kind), accountID, value)
	return pgerr.Translate(err)
}

func (r *Repo) SwitchShare(ctx context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID, value float64) error {
	if err := r.checkGroup(ctx, groupID, transactionID); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, `select transaction_share_switch($1, $2, $3, $4, $5)`,
		userID, transactionID, string(kind), accountID, value)
	return pgerr.Translate(err)
}

func (r *Repo) DeleteShare(ctx context.Context, userID, groupID, transactionID int64, kind ShareKind, accountID uuid.UUID) error {
	if err := r.checkGroup(ctx, groupID, transactionID); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, `select transaction_share_delete($1, $2, $3, $4)`,
		userID, transactionID, string(kind), accountID)
	return pgerr.Translate(err)
}

func (r *Repo) checkMember(ctx context.Context, userID, groupID int64) error {
	_, err := r.Pool.Exec(ctx, `select group_permission($1, $2, false, false)`, userID, groupID)
	return pgerr.Translate(err)
}

// checkGroup makes sure the transaction in the path belongs to the group in
// the path; the database functions only look at the transaction id.
func (r *Repo) checkGroup(ctx context.Context, groupID, transactionID int64) error {
	var grp int64
	err := r.Pool.QueryRow(ctx, `SELECT grp FROM transaction WHERE id = $1`, transactionID).Scan(&grp)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && grp != groupID) {
		return fmt.Errorf("%w: no transaction %d in group %d", pgerr.ErrNotFound, transactionID, groupID)
	}
	return err
}

func (r *Repo) loadShares(ctx context.Context, txs []Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	ids := make([]int64, len(txs))
	index := make(map[int64]int, len(txs))
	for i := range txs {
		ids[i] = txs[i].ID
		index[txs[i].ID] = i
		txs[i].CreditorShares = map[string]float64{}
		txs[i].DebitorShares = map[string]float64{}
	}

	for _, table := range []string{"creditor_share", "debitor_share"} {
		rows, err := r.Pool.Query(ctx, `
SELECT transaction_id, account_id::text, value::float8
FROM `+table+`
WHERE transaction_id = ANY($1)
`, ids)
		if err != nil {
			return err
		}

		var (
			tid     int64
			account string
			value   float64
		)
		_, err = pgx.ForEachRow(rows, []any{&tid, &account, &value}, func() error {
			t := &txs[index[tid]]
			if table == "creditor_share" {
				t.CreditorShares[account] = value
			} else {
				t.DebitorShares[account] = value
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func scanTransaction(row pgx.CollectableRow) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.GroupID, &t.Type, &t.Description, &t.Value,
		&t.CurrencySymbol, &t.CurrencyConversionRate, &t.Committed)
	return t, err
}
