/**
 * @description
 * This file implements the audit recorder. Every transfer attempt, successful
 * or not, produces one append-only audit row, and the write commits
 * independently of the surrounding transfer: the repository appends on its own
 * connection, never inside the ledger transaction. Audit writes are
 * fire-and-forget with respect to the transfer result; a failed audit write is
 * logged but never turns a completed transfer into a reported failure.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/corebank/payments-service/internal/domain"
	"github.com/corebank/payments-service/internal/store"
	"github.com/shopspring/decimal"
)

// AuditRecorder writes the compliance trail for transfer attempts.
type AuditRecorder struct {
	repo store.Repository
}

// NewAuditRecorder creates a new AuditRecorder backed by the given repository.
func NewAuditRecorder(repo store.Repository) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

// RecordSuccessfulTransfer appends the audit row for a completed transfer,
// including the before/after balance snapshots of both accounts.
func (a *AuditRecorder) RecordSuccessfulTransfer(ctx context.Context, tx *domain.Transaction, balances *BalanceSnapshot) {
	audit := &domain.TransactionAudit{
		TransactionID:        tx.ID,
		UserID:               tx.UserID,
		SourceAccountID:      tx.SourceAccountID,
		DestinationAccountID: tx.DestinationAccountID,
		Amount:               tx.Amount,
		SourceBalanceBefore:  &balances.SourceBefore,
		SourceBalanceAfter:   &balances.SourceAfter,
		DestBalanceBefore:    &balances.DestBefore,
		DestBalanceAfter:     &balances.DestAfter,
		Status:               tx.Status,
		Description:          tx.Description,
		Reference:            tx.Reference,
		Success:              true,
		CreatedAt:            time.Now().UTC(),
	}

	if err := a.repo.AppendAudit(ctx, audit); err != nil {
		log.Printf("level=error component=audit msg=\"success audit append failed\" transaction_id=%s err=%v", tx.ID, err)
		return
	}
	log.Printf("level=info component=audit msg=\"transfer audit recorded\" transaction_id=%s amount=%s status=SUCCESS", tx.ID, tx.Amount)
}

// RecordFailedTransfer appends the audit row for a failed attempt. When the
// attempt never reached a persisted PENDING record, transactionID is empty and
// a synthetic id is stamped so the row still correlates in the trail.
func (a *AuditRecorder) RecordFailedTransfer(ctx context.Context, transactionID, userID, sourceAccountID, destinationAccountID string, amount decimal.Decimal, errorMessage string) {
	if transactionID == "" {
		transactionID = fmt.Sprintf("FAILED_%d", time.Now().UnixMilli())
	}

	audit := &domain.TransactionAudit{
		TransactionID:        transactionID,
		UserID:               userID,
		SourceAccountID:      sourceAccountID,
		DestinationAccountID: destinationAccountID,
		Amount:               amount,
		Status:               domain.TransactionStatusFailed,
		Success:              false,
		ErrorMessage:         &errorMessage,
		CreatedAt:            time.Now().UTC(),
	}

	if err := a.repo.AppendAudit(ctx, audit); err != nil {
		log.Printf("level=error component=audit msg=\"failure audit append failed\" transaction_id=%s err=%v", transactionID, err)
		return
	}
	log.Printf("level=warn component=audit msg=\"failed transfer audit recorded\" user_id=%s amount=%s error=%q", userID, amount, errorMessage)
}
