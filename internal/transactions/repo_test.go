package transactions

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weblate/abrechnung/internal/pgerr"
)

// newTestPool connects to DATABASE_URL, which must hold a migrated schema.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func registerUser(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	name := uuid.NewString()[:12]
	var id int64
	err := pool.QueryRow(context.Background(), `select user_register($1, $2, $3)`,
		name+"@example.com", name, "secret-password").Scan(&id)
	require.NoError(t, err)
	return id
}

func TestRepo_Database(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewRepo(pool)

	owner := registerUser(t, pool)
	stranger := registerUser(t, pool)

	var groupID, otherGroup int64
	require.NoError(t, pool.QueryRow(ctx, `select group_create($1, 'repo test', '', '€')`, owner).Scan(&groupID))
	require.NoError(t, pool.QueryRow(ctx, `select group_create($1, 'other', '', '€')`, owner).Scan(&otherGroup))

	var alice, bob uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, `select account_create($1, $2, 'alice', '')`, owner, groupID).Scan(&alice))
	require.NoError(t, pool.QueryRow(ctx, `select account_create($1, $2, 'bob', '')`, owner, groupID).Scan(&bob))

	tid, err := repo.CreateTransaction(ctx, owner, groupID, NewTransaction{
		Description: "groceries", Type: "purchase", Value: 42.5, CurrencySymbol: "€", CurrencyConversionRate: 1,
	})
	require.NoError(t, err)

	err = repo.CommitTransaction(ctx, owner, groupID, tid)
	assert.ErrorIs(t, err, pgerr.ErrInvalid)
	assert.Equal(t, "incomplete-transaction", pgerr.RaiseID(err))

	require.NoError(t, repo.AddOrChangeShare(ctx, owner, groupID, tid, Creditor, alice, 1))
	require.NoError(t, repo.AddOrChangeShare(ctx, owner, groupID, tid, Debitor, alice, 1))
	require.NoError(t, repo.AddOrChangeShare(ctx, owner, groupID, tid, Debitor, bob, 2))
	require.NoError(t, repo.SwitchShare(ctx, owner, groupID, tid, Creditor, bob, 1))
	require.NoError(t, repo.DeleteShare(ctx, owner, groupID, tid, Debitor, alice))

	err = repo.DeleteShare(ctx, owner, groupID, tid, Debitor, alice)
	assert.ErrorIs(t, err, pgerr.ErrNotFound)

	got, err := repo.GetTransaction(ctx, owner, groupID, tid)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.Value)
	assert.False(t, got.Committed)
	assert.Equal(t, map[string]float64{bob.String(): 1}, got.CreditorShares)
	assert.Equal(t, map[string]float64{bob.String(): 2}, got.DebitorShares)

	require.NoError(t, repo.CommitTransaction(ctx, owner, groupID, tid))
	err = repo.AddOrChangeShare(ctx, owner, groupID, tid, Debitor, alice, 1)
	assert.ErrorIs(t, err, pgerr.ErrConflict)

	list, err := repo.ListTransactions(ctx, owner, groupID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Committed)

	// the transaction does not belong to the other group
	_, err = repo.GetTransaction(ctx, owner, otherGroup, tid)
	assert.ErrorIs(t, err, pgerr.ErrNotFound)
	err = repo.CommitTransaction(ctx, owner, otherGroup, tid)
	assert.ErrorIs(t, err, pgerr.ErrNotFound)

	_, err = repo.ListTransactions(ctx, stranger, groupID)
	assert.ErrorIs(t, err, pgerr.ErrPermissionDenied)
	_, err = repo.CreateTransaction(ctx, stranger, groupID, NewTransaction{
		Description: "x", Type: "purchase", Value: 1, CurrencySymbol: "€", CurrencyConversionRate: 1,
	})
	assert.ErrorIs(t, err, pgerr.ErrPermissionDenied)

	_, err = repo.CreateTransaction(ctx, owner, groupID, NewTransaction{
		Description: "x", Type: "gift", Value: 1, CurrencySymbol: "€", CurrencyConversionRate: 1,
	})
	assert.ErrorIs(t, err, pgerr.ErrInvalid)
}
