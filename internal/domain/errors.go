/**
 * @description
 * This file defines the error taxonomy for the transfer engine. Every
 * business-rule violation is represented as a `PaymentError` carrying a stable
 * machine code and a human-readable message; the orchestrator converts these
 * into failed TransferResults at its boundary so they never escape as faults.
 */

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error codes surfaced to callers. Codes, not types, are the contract.
const (
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeUserInactive           = "USER_INACTIVE"
	ErrCodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountAccessDenied    = "ACCOUNT_ACCESS_DENIED"
	ErrCodeAccountInactive        = "ACCOUNT_INACTIVE"
	ErrCodeCurrencyMismatch       = "CURRENCY_MISMATCH"
	ErrCodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	ErrCodeSameAccount            = "SAME_ACCOUNT"
	ErrCodeInvalidAmount          = "INVALID_AMOUNT"
	ErrCodeDuplicateReference     = "DUPLICATE_REFERENCE"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeTransactionNotFound    = "TRANSACTION_NOT_FOUND"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// PaymentError is a business-rule violation with a stable code.
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	return e.Message
}

// Retryable reports whether the caller may safely resubmit the same request.
// A retryable failure implies no balance mutation occurred.
func (e *PaymentError) Retryable() bool {
	return e.Code == ErrCodeConcurrentModification || e.Code == ErrCodeInternalError
}

// NewPaymentError builds a PaymentError with the given code and message.
func NewPaymentError(code, message string) *PaymentError {
	return &PaymentError{Code: code, Message: message}
}

// NewAccountNotFoundError reports a missing account by id.
func NewAccountNotFoundError(accountID string) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeAccountNotFound,
		Message: fmt.Sprintf("Account not found: %s", accountID),
	}
}

// NewAccountInactiveError names the offending account and its current status.
func NewAccountInactiveError(accountID string, status AccountStatus) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeAccountInactive,
		Message: fmt.Sprintf("Account %s is %s and cannot process transfers", accountID, status),
	}
}

// NewCurrencyMismatchError names both currencies.
func NewCurrencyMismatchError(sourceCurrency, destCurrency string) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeCurrencyMismatch,
		Message: fmt.Sprintf("Currency mismatch: source account currency %s, destination account currency %s", sourceCurrency, destCurrency),
	}
}

// NewInsufficientFundsError names the account, available and requested amounts.
func NewInsufficientFundsError(accountID string, available, requested decimal.Decimal) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeInsufficientFunds,
		Message: fmt.Sprintf("Insufficient funds in account %s. Available: %s, Requested: %s", accountID, available, requested),
	}
}
