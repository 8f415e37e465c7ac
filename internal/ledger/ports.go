package ledger

import (
	"context"

	"tally/internal/core"
)

// Store is the port to the durable ledger storage. Implementations must
// make each Apply* call a single atomic unit: the balance adjustment is
// an increment by delta (never an absolute write), the post-increment
// balance is stamped into the transaction's BalanceAfter, and the row
// change commits together with the adjustment or not at all.
//
// A transient write conflict (lost lock race, busy database) is reported
// as core.ErrConflict so the engine can retry within its budget.
type Store interface {
	CreateAccount(ctx context.Context, account core.Account) error
	// GetAccount returns core.ErrAccountNotFound for unknown ids.
	GetAccount(ctx context.Context, accountID string) (core.Account, error)

	// GetTransaction is scoped to accountID: a transaction owned by a
	// different account is core.ErrTransactionNotFound, never a
	// permission error, so existence is not leaked across owners.
	GetTransaction(ctx context.Context, accountID, txID string) (core.Transaction, error)

	ApplyCreate(ctx context.Context, tx core.Transaction, delta core.Money) (core.Money, error)
	ApplyUpdate(ctx context.Context, tx core.Transaction, delta core.Money) (core.Money, error)
	ApplyDelete(ctx context.Context, accountID, txID string, delta core.Money) (core.Money, error)

	// ListTransactions returns one page plus the total match count.
	ListTransactions(ctx context.Context, accountID string, f Filter, p Page) ([]core.Transaction, int64, error)

	// Summarize fills TotalTransactions, TotalCredit and TotalDebit;
	// the engine derives net and average from those.
	Summarize(ctx context.Context, accountID string, f Filter) (Summary, error)
	SumByCategory(ctx context.Context, accountID string, f Filter) ([]CategoryBucket, error)
	SumByMonth(ctx context.Context, accountID string, f Filter) ([]MonthBucket, error)
}

// MutationOp identifies which mutation produced an event.
type MutationOp string

const (
	OpCreated MutationOp = "created"
	OpUpdated MutationOp = "updated"
	OpDeleted MutationOp = "deleted"
)

// EventPublisher receives a best-effort notification after each
// successful mutation. Publish failures never fail the mutation.
type EventPublisher interface {
	PublishMutation(ctx context.Context, op MutationOp, tx core.Transaction, newBalance core.Money) error
}
