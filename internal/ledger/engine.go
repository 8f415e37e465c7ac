// Package ledger implements the transaction mutation engine and the
// aggregation engine on top of a pluggable Store.
//
// The engine is the only writer of account balances. Every mutation
// computes a single net delta, hands it to the store's atomic
// adjustment, and stamps the post-adjustment balance into the
// transaction's BalanceAfter, so the derived invariant
//
//	account.balance == sum of signed effects of all live transactions
//
// holds after every successful operation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

const (
	// mutationRetryBudget bounds retries on transient write conflicts.
	// Exceeding it surfaces core.ErrConflict instead of blocking.
	mutationRetryBudget = 3
)

type (
	// Engine orchestrates create/update/delete against the Store and
	// publishes mutation events. events may be nil.
	Engine struct {
		store  Store
		events EventPublisher
	}

	CreateInput struct {
		Amount      core.Money
		Kind        core.Kind
		Description string
		Category    string
		OccurredAt  time.Time // zero value defaults to now
	}

	UpdateInput struct {
		Amount      core.Money
		Kind        core.Kind
		Description string
		Category    string
		OccurredAt  time.Time // zero value keeps the stored timestamp
	}

	MutationResult struct {
		Transaction core.Transaction `json:"transaction"`
		NewBalance  core.Money       `json:"newBalance"`
	}
)

func NewEngine(store Store, events EventPublisher) *Engine {
	return &Engine{
		store:  store,
		events: events,
	}
}

// CreateAccount registers a new account with a zero balance.
func (e *Engine) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	account := core.Account{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// GetAccount returns the account with its current balance.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (core.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// Create appends a transaction to the account ledger. The account
// balance and the new transaction (with BalanceAfter stamped from the
// post-adjustment balance) are persisted as one atomic unit.
func (e *Engine) Create(ctx context.Context, accountID string, in CreateInput) (*MutationResult, error) {
	now := time.Now().UTC()
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Amount:      in.Amount,
		Kind:        in.Kind,
		Description: in.Description,
		Category:    in.Category,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
	}
	// Upstream layers validate too; the engine re-checks and fails
	// closed before any balance is touched.
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	delta := core.CreateDelta(tx)
	newBalance, err := e.applyWithRetry(ctx, func(ctx context.Context) (core.Money, error) {
		return e.store.ApplyCreate(ctx, tx, delta)
	})
	if err != nil {
		return nil, err
	}
	tx.BalanceAfter = newBalance

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", tx.ID,
		"account_id", accountID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents,
		"balance_cents", newBalance.Cents)

	e.publish(ctx, OpCreated, tx, newBalance)
	return &MutationResult{Transaction: tx, NewBalance: newBalance}, nil
}

// Update replaces the mutable fields of an existing transaction. The
// old effect is reversed and the new one applied as a single net delta,
// so no intermediate balance is ever observable.
func (e *Engine) Update(ctx context.Context, accountID, txID string, in UpdateInput) (*MutationResult, error) {
	old, err := e.store.GetTransaction(ctx, accountID, txID)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	updated := old
	updated.Amount = in.Amount
	updated.Kind = in.Kind
	updated.Description = in.Description
	updated.Category = in.Category
	if !in.OccurredAt.IsZero() {
		updated.OccurredAt = in.OccurredAt
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	delta := core.UpdateDelta(old, updated)
	newBalance, err := e.applyWithRetry(ctx, func(ctx context.Context) (core.Money, error) {
		return e.store.ApplyUpdate(ctx, updated, delta)
	})
	if err != nil {
		return nil, err
	}
	updated.BalanceAfter = newBalance

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", txID,
		"account_id", accountID,
		"delta_cents", delta.Cents,
		"balance_cents", newBalance.Cents)

	e.publish(ctx, OpUpdated, updated, newBalance)
	return &MutationResult{Transaction: updated, NewBalance: newBalance}, nil
}

// Delete removes a transaction and reverses its effect. The returned
// transaction is the prior state of the deleted row.
func (e *Engine) Delete(ctx context.Context, accountID, txID string) (*MutationResult, error) {
	old, err := e.store.GetTransaction(ctx, accountID, txID)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	delta := core.DeleteDelta(old)
	newBalance, err := e.applyWithRetry(ctx, func(ctx context.Context) (core.Money, error) {
		return e.store.ApplyDelete(ctx, accountID, txID, delta)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"transaction_id", txID,
		"account_id", accountID,
		"delta_cents", delta.Cents,
		"balance_cents", newBalance.Cents)

	e.publish(ctx, OpDeleted, old, newBalance)
	return &MutationResult{Transaction: old, NewBalance: newBalance}, nil
}

// Get returns a single transaction scoped to its owning account.
func (e *Engine) Get(ctx context.Context, accountID, txID string) (core.Transaction, error) {
	return e.store.GetTransaction(ctx, accountID, txID)
}

// List returns one page of transactions plus the total match count.
func (e *Engine) List(ctx context.Context, accountID string, f Filter, p Page) ([]core.Transaction, int64, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}
	return e.store.ListTransactions(ctx, accountID, f, p.Normalize())
}

// applyWithRetry runs op, retrying on core.ErrConflict with a short
// backoff until the budget is exhausted. Every other error propagates
// unchanged.
func (e *Engine) applyWithRetry(ctx context.Context, op func(context.Context) (core.Money, error)) (core.Money, error) {
	for attempt := 0; attempt < mutationRetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return core.Money{}, ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
		}

		newBalance, err := op(ctx)
		if err == nil {
			return newBalance, nil
		}
		if !errors.Is(err, core.ErrConflict) {
			return core.Money{}, err
		}

		slog.WarnContext(ctx, "Balance write conflict, retrying",
			"attempt", attempt+1,
			"budget", mutationRetryBudget)
	}
	return core.Money{}, fmt.Errorf("retry budget exhausted: %w", core.ErrConflict)
}

// retryBackoff returns the delay before the given retry attempt,
// doubling from 10ms and capped at 100ms.
func retryBackoff(attempt int) time.Duration {
	d := 10 * time.Millisecond << (attempt - 1)
	if d > 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return d
}

func (e *Engine) publish(ctx context.Context, op MutationOp, tx core.Transaction, newBalance core.Money) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishMutation(ctx, op, tx, newBalance); err != nil {
		// The mutation already committed; losing an event is logged,
		// never surfaced to the caller.
		slog.ErrorContext(ctx, "Failed to publish mutation event",
			"error", err,
			"op", op,
			"transaction_id", tx.ID,
			"account_id", tx.AccountID)
	}
}
