package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/memory"
)

func seedStatsAccount(t *testing.T) (*ledger.Engine, string) {
	t.Helper()
	engine, accountID := newTestEngine(t)
	ctx := context.Background()

	entries := []struct {
		in       ledger.CreateInput
		category string
		occurred time.Time
	}{
		{credit(10000), "salary", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		{debit(5000), "food", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)},
		{credit(7500), "salary", time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, e := range entries {
		in := e.in
		in.Category = e.category
		in.OccurredAt = e.occurred
		_, err := engine.Create(ctx, accountID, in)
		require.NoError(t, err)
	}
	return engine, accountID
}

func TestStatsSummary(t *testing.T) {
	engine, accountID := seedStatsAccount(t)

	stats, err := engine.Stats(context.Background(), accountID, ledger.Filter{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Summary.TotalTransactions)
	assert.Equal(t, int64(17500), stats.Summary.TotalCredit.Cents)
	assert.Equal(t, int64(5000), stats.Summary.TotalDebit.Cents)
	assert.Equal(t, int64(12500), stats.Summary.NetAmount.Cents)
	assert.Equal(t, int64(7500), stats.Summary.AverageAmount.Cents) // 225.00 / 3
}

func TestStatsCategoryBreakdown(t *testing.T) {
	engine, accountID := seedStatsAccount(t)

	stats, err := engine.Stats(context.Background(), accountID, ledger.Filter{})
	require.NoError(t, err)

	require.Len(t, stats.CategoryBreakdown, 2)
	assert.Equal(t, "salary", stats.CategoryBreakdown[0].Category)
	assert.Equal(t, int64(17500), stats.CategoryBreakdown[0].TotalAmount.Cents)
	assert.Equal(t, int64(2), stats.CategoryBreakdown[0].Count)
	assert.Equal(t, "food", stats.CategoryBreakdown[1].Category)
	assert.Equal(t, int64(5000), stats.CategoryBreakdown[1].TotalAmount.Cents)
}

func TestStatsCategoryOrdering(t *testing.T) {
	engine, accountID := newTestEngine(t)
	ctx := context.Background()

	// Equal totals: ties break on category name ascending.
	for _, cat := range []string{"zeta", "alpha"} {
		in := credit(1000)
		in.Category = cat
		_, err := engine.Create(ctx, accountID, in)
		require.NoError(t, err)
	}
	// Uncategorized entries form their own bucket.
	_, err := engine.Create(ctx, accountID, credit(9000))
	require.NoError(t, err)

	stats, err := engine.Stats(ctx, accountID, ledger.Filter{})
	require.NoError(t, err)

	require.Len(t, stats.CategoryBreakdown, 3)
	assert.Equal(t, "", stats.CategoryBreakdown[0].Category)
	assert.Equal(t, "alpha", stats.CategoryBreakdown[1].Category)
	assert.Equal(t, "zeta", stats.CategoryBreakdown[2].Category)
}

func TestStatsMonthlyBreakdown(t *testing.T) {
	engine, accountID := seedStatsAccount(t)

	stats, err := engine.Stats(context.Background(), accountID, ledger.Filter{})
	require.NoError(t, err)

	require.Len(t, stats.MonthlyBreakdown, 2)
	assert.Equal(t, 2025, stats.MonthlyBreakdown[0].Year)
	assert.Equal(t, 1, stats.MonthlyBreakdown[0].Month)
	assert.Equal(t, int64(15000), stats.MonthlyBreakdown[0].TotalAmount.Cents)
	assert.Equal(t, int64(2), stats.MonthlyBreakdown[0].Count)
	assert.Equal(t, 2, stats.MonthlyBreakdown[1].Month)
	assert.Equal(t, int64(7500), stats.MonthlyBreakdown[1].TotalAmount.Cents)
}

func TestStatsDateRangeFilter(t *testing.T) {
	engine, accountID := seedStatsAccount(t)

	stats, err := engine.Stats(context.Background(), accountID, ledger.Filter{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Summary.TotalTransactions)
	assert.Equal(t, int64(10000), stats.Summary.TotalCredit.Cents)
	assert.Equal(t, int64(5000), stats.Summary.TotalDebit.Cents)
	require.Len(t, stats.MonthlyBreakdown, 1)
	assert.Equal(t, 1, stats.MonthlyBreakdown[0].Month)
}

func TestStatsEmptyAccount(t *testing.T) {
	engine, accountID := newTestEngine(t)

	stats, err := engine.Stats(context.Background(), accountID, ledger.Filter{})
	require.NoError(t, err)

	assert.Zero(t, stats.Summary.TotalTransactions)
	assert.Zero(t, stats.Summary.AverageAmount.Cents)
	assert.Empty(t, stats.CategoryBreakdown)
	assert.Empty(t, stats.MonthlyBreakdown)
}

func TestStatsUnknownAccount(t *testing.T) {
	engine := ledger.NewEngine(memory.New(), nil)
	_, err := engine.Stats(context.Background(), "missing", ledger.Filter{})
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}
