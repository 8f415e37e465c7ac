package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/ledger"
)

func seedStore(t *testing.T) (*Store, string) {
	t.Helper()
	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateAccount(ctx, core.Account{ID: "acct-1", Name: "main"}))

	entries := []core.Transaction{
		{ID: "t1", AccountID: "acct-1", Amount: core.Money{Cents: 100}, Kind: core.Credit, Category: "salary", OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "t2", AccountID: "acct-1", Amount: core.Money{Cents: 200}, Kind: core.Debit, Category: "food", OccurredAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "t3", AccountID: "acct-1", Amount: core.Money{Cents: 300}, Kind: core.Credit, Category: "salary", OccurredAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tx := range entries {
		_, err := store.ApplyCreate(ctx, tx, tx.Effect())
		require.NoError(t, err)
	}
	return store, "acct-1"
}

func TestApplyCreateAdjustsBalance(t *testing.T) {
	store, accountID := seedStore(t)
	account, err := store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(100-200+300), account.Balance.Cents)
}

func TestApplyCreateStampsBalanceAfter(t *testing.T) {
	store, accountID := seedStore(t)
	tx, err := store.GetTransaction(context.Background(), accountID, "t3")
	require.NoError(t, err)
	assert.Equal(t, int64(200), tx.BalanceAfter.Cents)
}

func TestGetTransactionScope(t *testing.T) {
	store, _ := seedStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, core.Account{ID: "acct-2"}))

	_, err := store.GetTransaction(ctx, "acct-2", "t1")
	assert.ErrorIs(t, err, core.ErrTransactionNotFound)

	_, err = store.GetTransaction(ctx, "missing", "t1")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestListTransactionsSortAndPage(t *testing.T) {
	store, accountID := seedStore(t)
	ctx := context.Background()

	txs, total, err := store.ListTransactions(ctx, accountID, ledger.Filter{}, ledger.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, txs, 3)
	// Default: occurred_at descending.
	assert.Equal(t, "t3", txs[0].ID)
	assert.Equal(t, "t1", txs[2].ID)

	txs, total, err = store.ListTransactions(ctx, accountID, ledger.Filter{}, ledger.Page{SortBy: "amount", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)

	txs, _, err = store.ListTransactions(ctx, accountID, ledger.Filter{}, ledger.Page{SortBy: "amount", SortOrder: "asc", Number: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "t3", txs[0].ID)

	txs, total, err = store.ListTransactions(ctx, accountID, ledger.Filter{}, ledger.Page{Number: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, txs)
}

func TestListTransactionsFilter(t *testing.T) {
	store, accountID := seedStore(t)
	ctx := context.Background()

	txs, total, err := store.ListTransactions(ctx, accountID, ledger.Filter{Kind: core.Credit}, ledger.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, txs, 2)

	txs, _, err = store.ListTransactions(ctx, accountID, ledger.Filter{Category: "FOO"}, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "t2", txs[0].ID)
}

func TestApplyDeleteRemovesRow(t *testing.T) {
	store, accountID := seedStore(t)
	ctx := context.Background()

	tx, err := store.GetTransaction(ctx, accountID, "t2")
	require.NoError(t, err)

	balance, err := store.ApplyDelete(ctx, accountID, "t2", core.DeleteDelta(tx))
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance.Cents)

	_, err = store.GetTransaction(ctx, accountID, "t2")
	assert.ErrorIs(t, err, core.ErrTransactionNotFound)

	_, err = store.ApplyDelete(ctx, accountID, "t2", core.Money{})
	assert.ErrorIs(t, err, core.ErrTransactionNotFound)
}
