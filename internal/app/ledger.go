/**
 * @description
 * This file implements the ledger mutator: the only code that moves balance
 * between two accounts. It runs strictly under locks already held by the
 * caller and applies the debit/credit pair through the same ledger
 * transaction, so either both writes land or neither does.
 */

package app

import (
	"context"
	"fmt"

	"github.com/corebank/payments-service/internal/domain"
	"github.com/corebank/payments-service/internal/store"
	"github.com/shopspring/decimal"
)

// BalanceSnapshot carries the before/after balances of both accounts from a
// successful ledger mutation, for the audit trail and the conservation check.
type BalanceSnapshot struct {
	SourceBefore decimal.Decimal
	SourceAfter  decimal.Decimal
	DestBefore   decimal.Decimal
	DestAfter    decimal.Decimal
}

// validateAccountsForTransfer runs the pre-mutation invariant checks in a
// fixed order, each yielding a distinct failure code: source active, destination
// active, matching currency, sufficient source balance.
func validateAccountsForTransfer(source, destination *domain.Account, amount decimal.Decimal) error {
	if !source.IsActive() {
		return domain.NewAccountInactiveError(source.ID, source.Status)
	}
	if !destination.IsActive() {
		return domain.NewAccountInactiveError(destination.ID, destination.Status)
	}
	if source.Currency != destination.Currency {
		return domain.NewCurrencyMismatchError(source.Currency, destination.Currency)
	}
	if source.Balance.LessThan(amount) {
		return domain.NewInsufficientFundsError(source.ID, source.Balance, amount)
	}
	return nil
}

// applyTransfer debits the source and credits the destination by amount.
// Preconditions: both accounts were read through ltx under exclusive row
// locks, and validateAccountsForTransfer passed. The version-guarded writes
// surface store.ErrVersionConflict if either precondition was violated.
func applyTransfer(ctx context.Context, ltx store.LedgerTx, source, destination *domain.Account, amount decimal.Decimal) (*BalanceSnapshot, error) {
	snapshot := &BalanceSnapshot{
		SourceBefore: source.Balance,
		DestBefore:   destination.Balance,
	}

	newSourceBalance := source.Balance.Sub(amount)
	if err := ltx.UpdateAccountBalance(ctx, source, newSourceBalance); err != nil {
		return nil, fmt.Errorf("debit account %s: %w", source.ID, err)
	}

	newDestinationBalance := destination.Balance.Add(amount)
	if err := ltx.UpdateAccountBalance(ctx, destination, newDestinationBalance); err != nil {
		return nil, fmt.Errorf("credit account %s: %w", destination.ID, err)
	}

	snapshot.SourceAfter = newSourceBalance
	snapshot.DestAfter = newDestinationBalance
	return snapshot, nil
}
