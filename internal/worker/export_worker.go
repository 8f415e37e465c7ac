// Package worker turns consumed mutation events into audit rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets"
)

// ExportWorker appends each mutation event to the audit sheet.
type ExportWorker struct {
	appender sheets.Appender
}

func NewExportWorker(appender sheets.Appender) *ExportWorker {
	return &ExportWorker{appender: appender}
}

// HandleMutationEvent processes a single event from the queue. Returned
// errors cause a requeue, so it must stay safe to retry: appends are
// the only side effect.
func (w *ExportWorker) HandleMutationEvent(ctx context.Context, msg *amqp.MutationEventMessage) error {
	slog.InfoContext(ctx, "Exporting mutation event",
		"op", msg.Op,
		"transaction_id", msg.TransactionID,
		"account_id", msg.AccountID)

	// No export target configured. Events are still drained and acked
	// so the queue does not grow unbounded.
	if w.appender == nil {
		return nil
	}

	entry := sheets.Entry{
		Op:            msg.Op,
		TransactionID: msg.TransactionID,
		AccountID:     msg.AccountID,
		Amount:        core.Money{Cents: msg.AmountCents},
		Kind:          msg.Kind,
		Description:   msg.Description,
		Category:      msg.Category,
		OccurredAt:    msg.OccurredAt,
		BalanceAfter:  core.Money{Cents: msg.BalanceAfterCents},
		NewBalance:    core.Money{Cents: msg.NewBalanceCents},
		RecordedAt:    time.Now().UTC(),
	}

	if err := w.appender.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
