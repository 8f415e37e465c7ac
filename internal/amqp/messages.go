package amqp

import (
	"encoding/json"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// MutationEventMessage carries the full state of a mutated transaction
// so consumers can process deletes without a row to fetch.
type MutationEventMessage struct {
	Op                ledger.MutationOp `json:"op"`
	TransactionID     string            `json:"transactionId"`
	AccountID         string            `json:"accountId"`
	AmountCents       int64             `json:"amountCents"`
	Kind              core.Kind         `json:"kind"`
	Description       string            `json:"description"`
	Category          string            `json:"category,omitempty"`
	OccurredAt        time.Time         `json:"occurredAt"`
	BalanceAfterCents int64             `json:"balanceAfterCents"`
	NewBalanceCents   int64             `json:"newBalanceCents"`
	Timestamp         time.Time         `json:"timestamp"`
}

func NewMutationEventMessage(op ledger.MutationOp, tx core.Transaction, newBalance core.Money) *MutationEventMessage {
	return &MutationEventMessage{
		Op:                op,
		TransactionID:     tx.ID,
		AccountID:         tx.AccountID,
		AmountCents:       tx.Amount.Cents,
		Kind:              tx.Kind,
		Description:       tx.Description,
		Category:          tx.Category,
		OccurredAt:        tx.OccurredAt,
		BalanceAfterCents: tx.BalanceAfter.Cents,
		NewBalanceCents:   newBalance.Cents,
		Timestamp:         time.Now().UTC(),
	}
}

func (m *MutationEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationEventMessageFromJSON(data []byte) (*MutationEventMessage, error) {
	var msg MutationEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
