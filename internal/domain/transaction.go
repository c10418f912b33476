/**
 * @description
 * This file defines the transfer record (transaction), audit record, and the
 * request/result DTOs used by the transfer engine. A transaction is created in
 * PENDING state before any balance mutation is attempted, so a durable intent
 * record exists even when the mutation later fails, and it transitions exactly
 * once to COMPLETED or FAILED.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus enumerates the transfer record state machine.
// PENDING is the only non-terminal state.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// TransactionType distinguishes user-initiated internal transfers from
// system-initiated external ones.
type TransactionType string

const (
	TransactionTypeInternal TransactionType = "INTERNAL_TRANSFER"
	TransactionTypeExternal TransactionType = "EXTERNAL_TRANSFER"
)

// SystemUserID is stamped on transactions created through the system/legacy
// path, which carries no authenticated initiator.
const SystemUserID = "SYSTEM"

// DefaultCurrency is applied when a transfer request does not name one.
const DefaultCurrency = "USD"

// Transaction is the central ledger record for a transfer attempt. It maps
// directly to the `payment_transactions` table.
type Transaction struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	SourceAccountID      string            `json:"source_account_id"`
	DestinationAccountID string            `json:"destination_account_id"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             string            `json:"currency"`
	Status               TransactionStatus `json:"status"`
	TransactionType      TransactionType   `json:"transaction_type"`
	Description          string            `json:"description"`
	Reference            *string           `json:"reference,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	FailureReason        *string           `json:"failure_reason,omitempty"`
}

// IsCompleted reports whether the transaction reached its successful terminal state.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// TransactionAudit is the append-only compliance record written for every
// transfer attempt, success or failure. Balance snapshots are populated only
// on success. Rows are never updated or deleted by the engine.
type TransactionAudit struct {
	ID                   string            `json:"id"`
	TransactionID        string            `json:"transaction_id"`
	UserID               string            `json:"user_id"`
	SourceAccountID      string            `json:"source_account_id"`
	DestinationAccountID string            `json:"destination_account_id"`
	Amount               decimal.Decimal   `json:"amount"`
	SourceBalanceBefore  *decimal.Decimal  `json:"source_balance_before,omitempty"`
	SourceBalanceAfter   *decimal.Decimal  `json:"source_balance_after,omitempty"`
	DestBalanceBefore    *decimal.Decimal  `json:"dest_balance_before,omitempty"`
	DestBalanceAfter     *decimal.Decimal  `json:"dest_balance_after,omitempty"`
	Status               TransactionStatus `json:"status"`
	Description          string            `json:"description"`
	Reference            *string           `json:"reference,omitempty"`
	Success              bool              `json:"success"`
	ErrorMessage         *string           `json:"error_message,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// TransferRequest is the DTO for the system/legacy transfer path. It names no
// initiating user; the engine stamps SystemUserID and skips ownership checks.
type TransferRequest struct {
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency,omitempty"`
	Description          string          `json:"description,omitempty"`
	Reference            *string         `json:"reference,omitempty"`
}

// UserTransferRequest is the DTO for the authenticated transfer path.
type UserTransferRequest struct {
	UserID               string          `json:"user_id"`
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description,omitempty"`
	Reference            *string         `json:"reference,omitempty"`
}

// TransferResult is the structured outcome returned to callers. Business-rule
// failures are reported here, never as a propagated error.
type TransferResult struct {
	Success         bool            `json:"success"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	Message         string          `json:"message"`
	ErrorCode       string          `json:"error_code,omitempty"`
	TransactionType TransactionType `json:"transaction_type,omitempty"`
}

// SuccessResult builds a successful TransferResult.
func SuccessResult(transactionID, message string, txType TransactionType) TransferResult {
	return TransferResult{
		Success:         true,
		TransactionID:   transactionID,
		Message:         message,
		TransactionType: txType,
	}
}

// FailureResult builds a failed TransferResult carrying the taxonomy code.
func FailureResult(message, errorCode string) TransferResult {
	return TransferResult{
		Success:   false,
		Message:   message,
		ErrorCode: errorCode,
	}
}

// TransactionHistoryEntry is one row of a user's transfer history, with the
// account display names already resolved.
type TransactionHistoryEntry struct {
	ID                     string            `json:"id"`
	SourceAccountID        string            `json:"source_account_id"`
	SourceAccountName      string            `json:"source_account_name"`
	DestinationAccountID   string            `json:"destination_account_id"`
	DestinationAccountName string            `json:"destination_account_name"`
	Amount                 decimal.Decimal   `json:"amount"`
	Currency               string            `json:"currency"`
	Status                 TransactionStatus `json:"status"`
	TransactionType        TransactionType   `json:"transaction_type"`
	Description            string            `json:"description,omitempty"`
	Reference              *string           `json:"reference,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	CompletedAt            *time.Time        `json:"completed_at,omitempty"`
}

// HistoryListOptions controls pagination for history queries.
type HistoryListOptions struct {
	Limit  int
	Offset int
}
