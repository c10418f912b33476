/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for users, accounts, the transaction
 * log, and the append-only audit table, plus the ledger transaction that
 * acquires SELECT ... FOR UPDATE row locks and applies version-guarded
 * balance writes.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/corebank/payments-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	query := `SELECT user_id, username, status, created_at, updated_at FROM users WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

const accountColumns = `account_id, user_id, account_name, account_type, balance, currency, status, version, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID, &account.UserID, &account.AccountName, &account.AccountType,
		&account.Balance, &account.Currency, &account.Status, &account.Version,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByID retrieves an account from the database by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountByIDAndUserID retrieves an account only when the given user owns it.
func (r *PostgresRepository) FindAccountByIDAndUserID(ctx context.Context, accountID, userID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1 AND user_id = $2`
	return scanAccount(r.db.QueryRow(ctx, query, accountID, userID))
}

// CreateTransaction inserts a new transfer record. The (user_id, reference)
// unique index backs the per-user reference uniqueness invariant; a violation
// is mapped to ErrDuplicateReference.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO payment_transactions (
			transaction_id, user_id, source_account_id, destination_account_id,
			amount, currency, status, transaction_type, description, reference, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.SourceAccountID,
		tx.DestinationAccountID,
		tx.Amount,
		tx.Currency,
		tx.Status,
		tx.TransactionType,
		tx.Description,
		tx.Reference,
		tx.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// FinalizeTransaction transitions a PENDING transaction to its terminal state.
// The status guard in the WHERE clause makes the transition monotonic: a
// record that already left PENDING is never written again.
func (r *PostgresRepository) FinalizeTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE payment_transactions
		SET status = $2, completed_at = $3, failure_reason = $4
		WHERE transaction_id = $1 AND status = 'PENDING'
	`
	result, err := r.db.Exec(ctx, query, tx.ID, tx.Status, tx.CompletedAt, tx.FailureReason)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionFinalized
	}
	return nil
}

const transactionColumns = `transaction_id, user_id, source_account_id, destination_account_id,
       amount, currency, status, transaction_type, COALESCE(description, '') AS description,
       reference, created_at, completed_at, failure_reason`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.SourceAccountID, &tx.DestinationAccountID,
		&tx.Amount, &tx.Currency, &tx.Status, &tx.TransactionType, &tx.Description,
		&tx.Reference, &tx.CreatedAt, &tx.CompletedAt, &tx.FailureReason,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindTransactionByID retrieves a single transfer record.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE transaction_id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, transactionID))
}

// ExistsTransactionByReferenceAndUserID reports whether the user already has a
// transfer record carrying the given reference.
func (r *PostgresRepository) ExistsTransactionByReferenceAndUserID(ctx context.Context, reference, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM payment_transactions WHERE reference = $1 AND user_id = $2)`
	if err := r.db.QueryRow(ctx, query, reference, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func clampHistoryOptions(opts domain.HistoryListOptions) (int, int) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (r *PostgresRepository) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.SourceAccountID, &tx.DestinationAccountID,
			&tx.Amount, &tx.Currency, &tx.Status, &tx.TransactionType, &tx.Description,
			&tx.Reference, &tx.CreatedAt, &tx.CompletedAt, &tx.FailureReason,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// FindTransactionsByUserID retrieves a user's transfer records, newest first.
func (r *PostgresRepository) FindTransactionsByUserID(ctx context.Context, userID string, opts domain.HistoryListOptions) ([]domain.Transaction, error) {
	limit, offset := clampHistoryOptions(opts)
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryTransactions(ctx, query, userID, limit, offset)
}

// FindAccountTransactionsByUserID retrieves the transfer records touching one
// of the user's accounts, newest first.
func (r *PostgresRepository) FindAccountTransactionsByUserID(ctx context.Context, accountID, userID string, opts domain.HistoryListOptions) ([]domain.Transaction, error) {
	limit, offset := clampHistoryOptions(opts)
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE (source_account_id = $1 OR destination_account_id = $1) AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	return r.queryTransactions(ctx, query, accountID, userID, limit, offset)
}

// AppendAudit inserts one audit row. It runs on the pool, outside any ledger
// transaction, so the write commits even when the surrounding transfer rolls
// back.
func (r *PostgresRepository) AppendAudit(ctx context.Context, audit *domain.TransactionAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	query := `
		INSERT INTO transaction_audit (
			id, transaction_id, user_id, source_account_id, destination_account_id,
			amount, source_balance_before, source_balance_after,
			dest_balance_before, dest_balance_after,
			status, description, reference, success, error_message, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.Exec(ctx, query,
		audit.ID,
		audit.TransactionID,
		audit.UserID,
		audit.SourceAccountID,
		audit.DestinationAccountID,
		audit.Amount,
		audit.SourceBalanceBefore,
		audit.SourceBalanceAfter,
		audit.DestBalanceBefore,
		audit.DestBalanceAfter,
		audit.Status,
		audit.Description,
		audit.Reference,
		audit.Success,
		audit.ErrorMessage,
		audit.CreatedAt,
	)
	return err
}

// WithLedgerTx runs fn inside one database transaction. Row locks taken
// through the LedgerTx are held until fn returns; the transaction commits only
// when fn returns nil.
func (r *PostgresRepository) WithLedgerTx(ctx context.Context, fn func(ltx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresLedgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type postgresLedgerTx struct {
	tx pgx.Tx
}

// LockAccountForUpdate reads an account under SELECT ... FOR UPDATE. The row
// lock is held until the enclosing transaction ends. A lock_timeout expiry is
// mapped to ErrLockTimeout so callers can surface it as retryable contention
// instead of hanging.
func (l *postgresLedgerTx) LockAccountForUpdate(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1 FOR UPDATE`
	account, err := scanAccount(l.tx.QueryRow(ctx, query, accountID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, ErrLockTimeout
		}
		return nil, err
	}
	return account, nil
}

// UpdateAccountBalance writes a new balance guarded by the optimistic version
// counter. Under a held row lock the guard cannot fail, but it is still
// compared at write time so any code path that skipped the lock surfaces as
// ErrVersionConflict rather than a silent lost update.
func (l *postgresLedgerTx) UpdateAccountBalance(ctx context.Context, account *domain.Account, newBalance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE account_id = $3 AND version = $4
	`
	result, err := l.tx.Exec(ctx, query, newBalance, time.Now().UTC(), account.ID, account.Version)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	account.Balance = newBalance
	account.Version++
	return nil
}
