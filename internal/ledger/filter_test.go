package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tally/internal/core"
)

func TestFilterMatches(t *testing.T) {
	tx := core.Transaction{
		Kind:       core.Debit,
		Category:   "Groceries",
		OccurredAt: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty filter", Filter{}, true},
		{"kind match", Filter{Kind: core.Debit}, true},
		{"kind mismatch", Filter{Kind: core.Credit}, false},
		{"category substring, case-insensitive", Filter{Category: "grocer"}, true},
		{"category mismatch", Filter{Category: "rent"}, false},
		{"inside range", Filter{Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)}, true},
		{"start bound inclusive", Filter{Start: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)}, true},
		{"end bound inclusive", Filter{End: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)}, true},
		{"before range", Filter{Start: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)}, false},
		{"after range", Filter{End: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.f.Matches(tx))
		})
	}
}

func TestPageNormalize(t *testing.T) {
	p := Page{}.Normalize()
	assert.Equal(t, "occurred_at", p.SortBy)
	assert.Equal(t, "desc", p.SortOrder)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, DefaultPageLimit, p.Limit)
	assert.Equal(t, 0, p.Offset())

	p = Page{SortBy: "balance_after; DROP TABLE", SortOrder: "asc", Number: 3, Limit: 500}.Normalize()
	assert.Equal(t, "occurred_at", p.SortBy, "unknown sort columns fall back to the default")
	assert.Equal(t, "asc", p.SortOrder)
	assert.Equal(t, MaxPageLimit, p.Limit)
	assert.Equal(t, 2*MaxPageLimit, p.Offset())

	p = Page{SortBy: "amount", SortOrder: "desc", Number: 2, Limit: 25}.Normalize()
	assert.Equal(t, "amount", p.SortBy)
	assert.Equal(t, 25, p.Offset())
}
