package ledger

import (
	"strings"
	"time"

	"tally/internal/core"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type (
	// Filter narrows a transaction query. Zero values mean "no
	// constraint"; Start and End are inclusive bounds on OccurredAt.
	Filter struct {
		Kind     core.Kind
		Category string // case-insensitive substring match
		Start    time.Time
		End      time.Time
	}

	// Page carries request-level sort and pagination parameters.
	Page struct {
		SortBy    string // occurred_at, amount or created_at
		SortOrder string // asc or desc
		Number    int    // 1-based
		Limit     int
	}

	Summary struct {
		TotalTransactions int64      `json:"totalTransactions"`
		TotalCredit       core.Money `json:"totalCredit"`
		TotalDebit        core.Money `json:"totalDebit"`
		NetAmount         core.Money `json:"netAmount"`
		AverageAmount     core.Money `json:"averageAmount"`
	}

	// CategoryBucket totals one category value; the empty string is the
	// bucket for uncategorized transactions.
	CategoryBucket struct {
		Category    string     `json:"category"`
		TotalAmount core.Money `json:"totalAmount"`
		Count       int64      `json:"count"`
	}

	MonthBucket struct {
		Year        int        `json:"year"`
		Month       int        `json:"month"` // 1-12
		TotalAmount core.Money `json:"totalAmount"`
		Count       int64      `json:"count"`
	}

	StatsResult struct {
		Summary           Summary          `json:"summary"`
		CategoryBreakdown []CategoryBucket `json:"categoryBreakdown"`
		MonthlyBreakdown  []MonthBucket    `json:"monthlyBreakdown"`
	}
)

// Matches reports whether tx satisfies every set constraint.
func (f Filter) Matches(tx core.Transaction) bool {
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Category != "" && !strings.Contains(strings.ToLower(tx.Category), strings.ToLower(f.Category)) {
		return false
	}
	if !f.Start.IsZero() && tx.OccurredAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && tx.OccurredAt.After(f.End) {
		return false
	}
	return true
}

var sortColumns = map[string]bool{
	"occurred_at": true,
	"amount":      true,
	"created_at":  true,
}

// Normalize applies defaults and clamps out-of-range values. Unknown
// sort columns fall back to occurred_at so request input never reaches
// a query builder unchecked.
func (p Page) Normalize() Page {
	if !sortColumns[p.SortBy] {
		p.SortBy = "occurred_at"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of rows to skip for this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}
