// Package sheets defines the audit export port. Mutation events are
// appended as rows to an external spreadsheet by the worker.
package sheets

import (
	"context"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// Entry is one exported audit row.
type Entry struct {
	Op            ledger.MutationOp
	TransactionID string
	AccountID     string
	Amount        core.Money
	Kind          core.Kind
	Description   string
	Category      string
	OccurredAt    time.Time
	BalanceAfter  core.Money
	NewBalance    core.Money
	RecordedAt    time.Time
}

// Appender writes audit entries to the export target.
type Appender interface {
	Append(ctx context.Context, e Entry) error
}
