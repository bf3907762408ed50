package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weblate/abrechnung/internal/audit"
	"github.com/weblate/abrechnung/internal/pgerr"
)

type Repo struct {
	Pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

const selectGroup = `
SELECT g.id, g.name, g.description, g.currency_symbol, g.created_by, g.created_at,
       m.is_owner, m.can_write
FROM grp g
JOIN group_membership m ON m.grp = g.id
WHERE m.usr = $1
`

func (r *Repo) ListGroups(ctx context.Context, userID int64) ([]Group, error) {
	rows, err := r.Pool.Query(ctx, selectGroup+`ORDER BY g.id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanGroup)
}

// GetGroup reports groups the user is not a member of as permission
// failures, the same way the database functions do.
func (r *Repo) GetGroup(ctx context.Context, userID, groupID int64) (Group, error) {
	rows, err := r.Pool.Query(ctx, selectGroup+`AND g.id = $2`, userID, groupID)
	if err != nil {
		return Group{}, err
	}
	g, err := pgx.CollectExactlyOneRow(rows, scanGroup)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, fmt.Errorf("%w: user %d is not a member of group %d", pgerr.ErrPermissionDenied, userID, groupID)
	}
	return g, err
}

func (r *Repo) CreateGroup(ctx context.Context, userID int64, in GroupInput) (int64, error) {
	var id int64
	err := r.Pool.QueryRow(ctx, `select group_create($1, $2, $3, $4)`,
		userID, in.Name, in.Description, in.CurrencySymbol).Scan(&id)
	if err != nil {
		return 0, pgerr.Translate(err)
	}
	return id, nil
}

func (r *Repo) UpdateGroup(ctx context.Context, userID, groupID int64, in GroupInput) error {
	_, err := r.Pool.Exec(ctx, `select group_update($1, $2, $3, $4, $5)`,
		userID, groupID, in.Name, in.Description, in.CurrencySymbol)
	return pgerr.Translate(err)
}

func (r *Repo) AddMember(ctx context.Context, userID, groupID int64, in MemberInput) error {
	_, err := r.Pool.Exec(ctx, `select group_add_member($1, $2, $3, $4)`,
		userID, groupID, in.UserID, in.CanWrite)
	return pgerr.Translate(err)
}

func (r *Repo) ListAccounts(ctx context.Context, userID, groupID int64) ([]Account, error) {
	if err := r.checkMember(ctx, userID, groupID); err != nil {
		return nil, err
	}

	rows, err := r.Pool.Query(ctx, `
SELECT id, grp, name, description, created_at
FROM account
WHERE grp = $1
ORDER BY name, id
`, groupID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Account, error) {
		var a Account
		err := row.Scan(&a.ID, &a.GroupID, &a.Name, &a.Description, &a.CreatedAt)
		return a, err
	})
}

func (r *Repo) CreateAccount(ctx context.Context, userID, groupID int64, in AccountInput) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.Pool.QueryRow(ctx, `select account_create($1, $2, $3, $4)`,
		userID, groupID, in.Name, in.Description).Scan(&id)
	if err != nil {
		return uuid.Nil, pgerr.Translate(err)
	}
	return id, nil
}

func (r *Repo) Log(ctx context.Context, userID, groupID int64) ([]audit.Record, error) {
	if err := r.checkMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return audit.List(ctx, r.Pool, groupID)
}

func (r *Repo) checkMember(ctx context.Context, userID, groupID int64) error {
	_, err := r.Pool.Exec(ctx, `select group_permission($1, $2, false, false)`, userID, groupID)
	return pgerr.Translate(err)
}

func scanGroup(row pgx.CollectableRow) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CurrencySymbol, &g.CreatedBy, &g.CreatedAt,
		&g.IsOwner, &g.CanWrite)
	return g, err
}
