/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the transfer engine needs. Defining an interface decouples the
 * business logic from PostgreSQL and lets tests substitute in-memory
 * implementations, including a ledger transaction that takes real locks.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/corebank/payments-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateReference   = errors.New("reference already exists for user")
	ErrVersionConflict      = errors.New("stale account version")
	ErrTransactionFinalized = errors.New("transaction already finalized")
	ErrLockTimeout          = errors.New("account lock acquisition timed out")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User and account lookups
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)
	// FindAccountByIDAndUserID is the ownership check: it returns the account
	// only when it is owned by the given user.
	FindAccountByIDAndUserID(ctx context.Context, accountID, userID string) (*domain.Account, error)

	// Transaction log
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	// FinalizeTransaction moves a PENDING transaction to a terminal state.
	// It returns ErrTransactionFinalized when the record already left PENDING.
	FinalizeTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ExistsTransactionByReferenceAndUserID(ctx context.Context, reference, userID string) (bool, error)
	FindTransactionsByUserID(ctx context.Context, userID string, opts domain.HistoryListOptions) ([]domain.Transaction, error)
	FindAccountTransactionsByUserID(ctx context.Context, accountID, userID string, opts domain.HistoryListOptions) ([]domain.Transaction, error)

	// Audit log. Appends commit independently of any surrounding ledger
	// transaction; rows are never updated or deleted.
	AppendAudit(ctx context.Context, audit *domain.TransactionAudit) error

	// WithLedgerTx runs fn inside one database transaction. The LedgerTx it
	// receives holds exclusive row locks for the duration of fn; either every
	// write made through it lands or none do.
	WithLedgerTx(ctx context.Context, fn func(ltx LedgerTx) error) error
}

// LedgerTx is the handle the ledger mutator works through. Both methods
// operate under the enclosing database transaction, so locks acquired by
// LockAccountForUpdate are held until the transaction ends.
type LedgerTx interface {
	// LockAccountForUpdate reads an account under an exclusive row lock.
	LockAccountForUpdate(ctx context.Context, accountID string) (*domain.Account, error)
	// UpdateAccountBalance writes a new balance guarded by the account's
	// optimistic version counter. Returns ErrVersionConflict when the stored
	// version no longer matches.
	UpdateAccountBalance(ctx context.Context, account *domain.Account, newBalance decimal.Decimal) error
}
