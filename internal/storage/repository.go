// Package storage is the SQLite implementation of ledger.Store.
//
// Every Apply* runs inside an immediate transaction: the balance moves
// through a single UPDATE ... RETURNING increment, the post-increment
// value is stamped into the row's balance_after_cents, and both commit
// together. A busy database surfaces as core.ErrConflict so the engine
// can retry within its budget.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05.000"

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Immediate transactions take the write lock up front so the
	// read-adjust-stamp sequence never races another writer; WAL keeps
	// aggregation reads off the write path.
	dsn := dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, account core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, balance_cents, created_at) VALUES (?, ?, ?, ?)`,
		account.ID, account.Name, account.Balance.Cents, account.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert account: %w", mapSQLiteErr(err))
	}
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, accountID string) (core.Account, error) {
	var (
		account   core.Account
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, balance_cents, created_at FROM accounts WHERE id = ?`, accountID).
		Scan(&account.ID, &account.Name, &account.Balance.Cents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", mapSQLiteErr(err))
	}
	account.CreatedAt = parseTime(createdAt)
	return account, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, accountID, txID string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, amount_cents, kind, description, category,
		        occurred_at, balance_after_cents, created_at
		 FROM transactions WHERE id = ? AND account_id = ?`, txID, accountID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", mapSQLiteErr(err))
	}
	return tx, nil
}

func (r *SQLiteRepository) ApplyCreate(ctx context.Context, tx core.Transaction, delta core.Money) (core.Money, error) {
	var newBalance core.Money
	err := r.withTx(ctx, func(dbtx *sql.Tx) error {
		balance, err := adjustBalance(ctx, dbtx, tx.AccountID, delta)
		if err != nil {
			return err
		}
		_, err = dbtx.ExecContext(ctx,
			`INSERT INTO transactions (id, account_id, amount_cents, kind, description,
			                           category, occurred_at, balance_after_cents, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, tx.AccountID, tx.Amount.Cents, string(tx.Kind), tx.Description, tx.Category,
			tx.OccurredAt.UTC().Format(timeLayout), balance.Cents, tx.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		newBalance = balance
		return nil
	})
	return newBalance, err
}

func (r *SQLiteRepository) ApplyUpdate(ctx context.Context, tx core.Transaction, delta core.Money) (core.Money, error) {
	var newBalance core.Money
	err := r.withTx(ctx, func(dbtx *sql.Tx) error {
		balance, err := adjustBalance(ctx, dbtx, tx.AccountID, delta)
		if err != nil {
			return err
		}
		res, err := dbtx.ExecContext(ctx,
			`UPDATE transactions
			 SET amount_cents = ?, kind = ?, description = ?, category = ?,
			     occurred_at = ?, balance_after_cents = ?
			 WHERE id = ? AND account_id = ?`,
			tx.Amount.Cents, string(tx.Kind), tx.Description, tx.Category,
			tx.OccurredAt.UTC().Format(timeLayout), balance.Cents, tx.ID, tx.AccountID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return core.ErrTransactionNotFound
		}
		newBalance = balance
		return nil
	})
	return newBalance, err
}

func (r *SQLiteRepository) ApplyDelete(ctx context.Context, accountID, txID string, delta core.Money) (core.Money, error) {
	var newBalance core.Money
	err := r.withTx(ctx, func(dbtx *sql.Tx) error {
		balance, err := adjustBalance(ctx, dbtx, accountID, delta)
		if err != nil {
			return err
		}
		res, err := dbtx.ExecContext(ctx,
			`DELETE FROM transactions WHERE id = ? AND account_id = ?`, txID, accountID)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return core.ErrTransactionNotFound
		}
		newBalance = balance
		return nil
	})
	return newBalance, err
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID string, f ledger.Filter, p ledger.Page) ([]core.Transaction, int64, error) {
	where, args := buildFilter(accountID, f)
	p = p.Normalize()

	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", mapSQLiteErr(err))
	}

	query := fmt.Sprintf(
		`SELECT id, account_id, amount_cents, kind, description, category,
		        occurred_at, balance_after_cents, created_at
		 FROM transactions %s ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		where, sortColumn(p.SortBy), strings.ToUpper(p.SortOrder))
	rows, err := r.db.QueryContext(ctx, query, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", mapSQLiteErr(err))
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0, p.Limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", mapSQLiteErr(err))
	}
	return txs, total, nil
}

func (r *SQLiteRepository) Summarize(ctx context.Context, accountID string, f ledger.Filter) (ledger.Summary, error) {
	where, args := buildFilter(accountID, f)

	var sum ledger.Summary
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN kind = 'credit' THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'debit' THEN amount_cents ELSE 0 END), 0)
		 FROM transactions `+where, args...).
		Scan(&sum.TotalTransactions, &sum.TotalCredit.Cents, &sum.TotalDebit.Cents)
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("summarize transactions: %w", mapSQLiteErr(err))
	}
	return sum, nil
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context, accountID string, f ledger.Filter) ([]ledger.CategoryBucket, error) {
	where, args := buildFilter(accountID, f)

	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents), COUNT(*)
		 FROM transactions `+where+`
		 GROUP BY category
		 ORDER BY SUM(amount_cents) DESC, category ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", mapSQLiteErr(err))
	}
	defer rows.Close()

	var out []ledger.CategoryBucket
	for rows.Next() {
		var b ledger.CategoryBucket
		if err := rows.Scan(&b.Category, &b.TotalAmount.Cents, &b.Count); err != nil {
			return nil, fmt.Errorf("scan category bucket: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category buckets: %w", mapSQLiteErr(err))
	}
	return out, nil
}

func (r *SQLiteRepository) SumByMonth(ctx context.Context, accountID string, f ledger.Filter) ([]ledger.MonthBucket, error) {
	where, args := buildFilter(accountID, f)

	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', occurred_at) AS INTEGER),
		        CAST(strftime('%m', occurred_at) AS INTEGER),
		        SUM(amount_cents), COUNT(*)
		 FROM transactions `+where+`
		 GROUP BY 1, 2
		 ORDER BY 1, 2`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by month: %w", mapSQLiteErr(err))
	}
	defer rows.Close()

	var out []ledger.MonthBucket
	for rows.Next() {
		var b ledger.MonthBucket
		if err := rows.Scan(&b.Year, &b.Month, &b.TotalAmount.Cents, &b.Count); err != nil {
			return nil, fmt.Errorf("scan month bucket: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month buckets: %w", mapSQLiteErr(err))
	}
	return out, nil
}

// adjustBalance applies delta as an atomic increment and returns the
// post-increment balance, eliminating the read-modify-write race on the
// balance field by construction.
func adjustBalance(ctx context.Context, dbtx *sql.Tx, accountID string, delta core.Money) (core.Money, error) {
	var balance core.Money
	err := dbtx.QueryRowContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ? RETURNING balance_cents`,
		delta.Cents, accountID).Scan(&balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapSQLiteErr(err))
	}
	if err := fn(dbtx); err != nil {
		_ = dbtx.Rollback()
		return mapSQLiteErr(err)
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapSQLiteErr(err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx         core.Transaction
		kind       string
		occurredAt string
		createdAt  string
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.Amount.Cents, &kind, &tx.Description,
		&tx.Category, &occurredAt, &tx.BalanceAfter.Cents, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.OccurredAt = parseTime(occurredAt)
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

// buildFilter renders f as a WHERE clause. Column values are always
// bound parameters; only whitelisted sort columns reach the query text.
func buildFilter(accountID string, f ledger.Filter) (string, []any) {
	clauses := []string{"account_id = ?"}
	args := []any{accountID}

	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Category != "" {
		clauses = append(clauses, "instr(lower(category), lower(?)) > 0")
		args = append(args, f.Category)
	}
	if !f.Start.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, f.Start.UTC().Format(timeLayout))
	}
	if !f.End.IsZero() {
		clauses = append(clauses, "occurred_at <= ?")
		args = append(args, f.End.UTC().Format(timeLayout))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func sortColumn(sortBy string) string {
	if sortBy == "amount" {
		return "amount_cents"
	}
	return sortBy
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// mapSQLiteErr folds driver failures into the error taxonomy: a locked
// or busy database is a retryable conflict, a lost connection is a
// store outage. Not-found sentinels pass through untouched.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrAccountNotFound) ||
		errors.Is(err, core.ErrTransactionNotFound) ||
		errors.Is(err, core.ErrConflict) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy") {
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "database disk image is malformed") {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return err
}
