package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Credit Kind = "credit"
	Debit  Kind = "debit"
)

type (
	// Kind is the direction of a transaction's effect on the balance.
	Kind string

	// Account holds the authoritative running balance. The balance is
	// only ever moved through the store's atomic adjustment; nothing
	// exposes a raw setter.
	Account struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Balance   Money     `json:"balance"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Transaction is a single signed ledger entry. BalanceAfter is the
	// account balance immediately after this entry's effect was applied,
	// in application order - it is not recomputed when entries are
	// backdated via OccurredAt.
	Transaction struct {
		ID           string    `json:"id"`
		AccountID    string    `json:"accountId"`
		Amount       Money     `json:"amount"`
		Kind         Kind      `json:"kind"`
		Description  string    `json:"description"`
		Category     string    `json:"category,omitempty"`
		OccurredAt   time.Time `json:"occurredAt"`
		BalanceAfter Money     `json:"balanceAfter"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyDescription    = errors.New("empty description")
	ErrConflict            = errors.New("concurrent balance update conflict")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
)

// Valid reports whether k is one of the two supported kinds.
func (k Kind) Valid() bool {
	return k == Credit || k == Debit
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind normalizes and validates a kind value coming from a request.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}
