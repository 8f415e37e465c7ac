// Package memory is an in-process ledger.Store used as the default
// backend and as the test harness for the mutation engine.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tally/internal/core"
	"tally/internal/ledger"
)

// Store keeps accounts and transactions in maps. Each account has its
// own mutex held across a whole Apply* unit, so mutations on one
// account serialize while other accounts proceed independently.
// Aggregations copy the matched set under a short lock and compute
// outside it.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*accountState
}

type accountState struct {
	mu      sync.Mutex
	account core.Account
	txs     map[string]core.Transaction
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{accounts: make(map[string]*accountState)}
}

func (s *Store) CreateAccount(_ context.Context, account core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = &accountState{
		account: account,
		txs:     make(map[string]core.Transaction),
	}
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (core.Account, error) {
	state, err := s.state(accountID)
	if err != nil {
		return core.Account{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.account, nil
}

func (s *Store) GetTransaction(_ context.Context, accountID, txID string) (core.Transaction, error) {
	state, err := s.state(accountID)
	if err != nil {
		return core.Transaction{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	tx, ok := state.txs[txID]
	if !ok {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *Store) ApplyCreate(_ context.Context, tx core.Transaction, delta core.Money) (core.Money, error) {
	state, err := s.state(tx.AccountID)
	if err != nil {
		return core.Money{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	state.account.Balance = state.account.Balance.Add(delta)
	tx.BalanceAfter = state.account.Balance
	state.txs[tx.ID] = tx
	return state.account.Balance, nil
}

func (s *Store) ApplyUpdate(_ context.Context, tx core.Transaction, delta core.Money) (core.Money, error) {
	state, err := s.state(tx.AccountID)
	if err != nil {
		return core.Money{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, ok := state.txs[tx.ID]; !ok {
		return core.Money{}, core.ErrTransactionNotFound
	}
	state.account.Balance = state.account.Balance.Add(delta)
	tx.BalanceAfter = state.account.Balance
	state.txs[tx.ID] = tx
	return state.account.Balance, nil
}

func (s *Store) ApplyDelete(_ context.Context, accountID, txID string, delta core.Money) (core.Money, error) {
	state, err := s.state(accountID)
	if err != nil {
		return core.Money{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, ok := state.txs[txID]; !ok {
		return core.Money{}, core.ErrTransactionNotFound
	}
	state.account.Balance = state.account.Balance.Add(delta)
	delete(state.txs, txID)
	return state.account.Balance, nil
}

func (s *Store) ListTransactions(_ context.Context, accountID string, f ledger.Filter, p ledger.Page) ([]core.Transaction, int64, error) {
	matched, err := s.matched(accountID, f)
	if err != nil {
		return nil, 0, err
	}

	p = p.Normalize()
	sort.SliceStable(matched, func(i, j int) bool {
		if p.SortOrder == "desc" {
			i, j = j, i
		}
		return compareTx(matched[i], matched[j], p.SortBy)
	})

	total := int64(len(matched))
	start := p.Offset()
	if start >= len(matched) {
		return []core.Transaction{}, total, nil
	}
	end := start + p.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *Store) Summarize(_ context.Context, accountID string, f ledger.Filter) (ledger.Summary, error) {
	matched, err := s.matched(accountID, f)
	if err != nil {
		return ledger.Summary{}, err
	}

	var sum ledger.Summary
	for _, tx := range matched {
		sum.TotalTransactions++
		switch tx.Kind {
		case core.Credit:
			sum.TotalCredit = sum.TotalCredit.Add(tx.Amount)
		case core.Debit:
			sum.TotalDebit = sum.TotalDebit.Add(tx.Amount)
		}
	}
	return sum, nil
}

func (s *Store) SumByCategory(_ context.Context, accountID string, f ledger.Filter) ([]ledger.CategoryBucket, error) {
	matched, err := s.matched(accountID, f)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*ledger.CategoryBucket)
	for _, tx := range matched {
		bucket, ok := byCategory[tx.Category]
		if !ok {
			bucket = &ledger.CategoryBucket{Category: tx.Category}
			byCategory[tx.Category] = bucket
		}
		bucket.TotalAmount = bucket.TotalAmount.Add(tx.Amount)
		bucket.Count++
	}

	out := make([]ledger.CategoryBucket, 0, len(byCategory))
	for _, b := range byCategory {
		out = append(out, *b)
	}
	// Largest total first; ties broken by category name for a stable
	// response shape.
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAmount.Cents != out[j].TotalAmount.Cents {
			return out[i].TotalAmount.Cents > out[j].TotalAmount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Store) SumByMonth(_ context.Context, accountID string, f ledger.Filter) ([]ledger.MonthBucket, error) {
	matched, err := s.matched(accountID, f)
	if err != nil {
		return nil, err
	}

	type ym struct{ year, month int }
	byMonth := make(map[ym]*ledger.MonthBucket)
	for _, tx := range matched {
		key := ym{tx.OccurredAt.Year(), int(tx.OccurredAt.Month())}
		bucket, ok := byMonth[key]
		if !ok {
			bucket = &ledger.MonthBucket{Year: key.year, Month: key.month}
			byMonth[key] = bucket
		}
		bucket.TotalAmount = bucket.TotalAmount.Add(tx.Amount)
		bucket.Count++
	}

	out := make([]ledger.MonthBucket, 0, len(byMonth))
	for _, b := range byMonth {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (s *Store) state(accountID string) (*accountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.accounts[accountID]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return state, nil
}

// matched copies the transactions passing f so sorting and aggregation
// run without holding the account lock.
func (s *Store) matched(accountID string, f ledger.Filter) ([]core.Transaction, error) {
	state, err := s.state(accountID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	out := make([]core.Transaction, 0, len(state.txs))
	for _, tx := range state.txs {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func compareTx(a, b core.Transaction, sortBy string) bool {
	switch sortBy {
	case "amount":
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents < b.Amount.Cents
		}
	case "created_at":
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	default:
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
	}
	// Stable fallback so pagination never straddles equal keys
	// unpredictably.
	return strings.Compare(a.ID, b.ID) < 0
}
