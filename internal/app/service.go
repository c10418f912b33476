/**
 * @description
 * This file contains the transfer orchestrator for the payments-service. The
 * `Service` struct coordinates a transfer end to end: request validation, the
 * durable PENDING intent record, canonical-order lock acquisition, the ledger
 * mutation, finalization of the transfer record, the audit trail, and event
 * publication.
 *
 * Key properties:
 * - Business-rule violations are converted to failed TransferResults at this
 *   boundary; they never escape as errors, and unexpected failures surface as
 *   INTERNAL_ERROR without leaking detail.
 * - Every failure path still records a failure audit row before returning.
 * - Locks are always acquired in canonical account-id order, which makes
 *   deadlock between concurrent transfers impossible by construction.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction id generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For transfer lifecycle event publication.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/corebank/payments-service/internal/domain"
	"github.com/corebank/payments-service/internal/store"
	"github.com/corebank/payments-service/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service provides the core transfer and transaction-query logic.
type Service struct {
	repo   store.Repository
	audit  *AuditRecorder
	events rabbitmq.Publisher
}

// NewService creates a new transfer service instance. events may be nil when
// no broker is configured; publication is then skipped.
func NewService(repo store.Repository, audit *AuditRecorder, events rabbitmq.Publisher) *Service {
	return &Service{
		repo:   repo,
		audit:  audit,
		events: events,
	}
}

// TransferFunds executes a transfer initiated by an authenticated user. The
// user must be active and own both accounts. The returned result always
// carries either a transaction id or a taxonomy error code.
func (s *Service) TransferFunds(ctx context.Context, req domain.UserTransferRequest) domain.TransferResult {
	log.Printf("level=info component=transfer msg=\"starting user transfer\" user_id=%s source=%s destination=%s amount=%s",
		req.UserID, req.SourceAccountID, req.DestinationAccountID, req.Amount)

	if err := s.validateUserTransferRequest(ctx, req); err != nil {
		return s.failTransfer(ctx, nil, req.UserID, req.SourceAccountID, req.DestinationAccountID, req.Amount, err)
	}

	tx := &domain.Transaction{
		ID:                   uuid.NewString(),
		UserID:               req.UserID,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Currency:             domain.DefaultCurrency,
		Status:               domain.TransactionStatusPending,
		TransactionType:      domain.TransactionTypeInternal,
		Description:          req.Description,
		Reference:            req.Reference,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return s.failTransfer(ctx, nil, req.UserID, req.SourceAccountID, req.DestinationAccountID, req.Amount, err)
	}

	balances, err := s.executeTransfer(ctx, tx, req.UserID)
	if err != nil {
		return s.failTransfer(ctx, tx, req.UserID, req.SourceAccountID, req.DestinationAccountID, req.Amount, err)
	}

	return s.completeTransfer(ctx, tx, balances, "Transfer completed successfully")
}

// SystemTransferFunds executes a transfer through the system/legacy path. No
// initiating user is resolved and ownership is not checked; the record is
// stamped with the SYSTEM user id. Callers reach this only through the
// internal-key-protected endpoint, which is the explicit trust decision for
// arbitrary account-to-account moves.
func (s *Service) SystemTransferFunds(ctx context.Context, req domain.TransferRequest) domain.TransferResult {
	log.Printf("level=info component=transfer msg=\"starting system transfer\" source=%s destination=%s amount=%s",
		req.SourceAccountID, req.DestinationAccountID, req.Amount)

	if err := validateTransferShape(req.SourceAccountID, req.DestinationAccountID, req.Amount); err != nil {
		return s.failTransfer(ctx, nil, domain.SystemUserID, req.SourceAccountID, req.DestinationAccountID, req.Amount, err)
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	tx := &domain.Transaction{
		ID:                   uuid.NewString(),
		UserID:               domain.SystemUserID,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Currency:             currency,
		Status:               domain.TransactionStatusPending,
		TransactionType:      domain.TransactionTypeExternal,
		Description:          req.Description,
		Reference:            req.Reference,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return s.failTransfer(ctx, nil, domain.SystemUserID, req.SourceAccountID, req.DestinationAccountID, req.Amount, err)
	}

	balances, err := s.executeTransfer(ctx, tx, "")
	if err != nil {
		return s.failTransfer(ctx, tx, domain.SystemUserID, req.SourceAccountID, req.DestinationAccountID, req.Amount, err)
	}

	return s.completeTransfer(ctx, tx, balances, "Transfer completed successfully")
}

// validateUserTransferRequest runs every pre-lock check for the user path:
// initiator exists and is active, accounts differ, amount is positive, the
// idempotency reference is unused, and the user owns both accounts. All of
// this happens before any lock is taken or record created.
func (s *Service) validateUserTransferRequest(ctx context.Context, req domain.UserTransferRequest) error {
	user, err := s.repo.FindUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.NewPaymentError(domain.ErrCodeUserNotFound, "User not found")
		}
		return err
	}
	if !user.IsActive() {
		return domain.NewPaymentError(domain.ErrCodeUserInactive, "User account is not active")
	}

	if err := validateTransferShape(req.SourceAccountID, req.DestinationAccountID, req.Amount); err != nil {
		return err
	}

	if req.Reference != nil {
		exists, err := s.repo.ExistsTransactionByReferenceAndUserID(ctx, *req.Reference, req.UserID)
		if err != nil {
			return err
		}
		if exists {
			return domain.NewPaymentError(domain.ErrCodeDuplicateReference, "Reference number already exists for this user")
		}
	}

	if _, err := s.repo.FindAccountByIDAndUserID(ctx, req.SourceAccountID, req.UserID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return domain.NewPaymentError(domain.ErrCodeAccountAccessDenied, "Source account access denied")
		}
		return err
	}
	if _, err := s.repo.FindAccountByIDAndUserID(ctx, req.DestinationAccountID, req.UserID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return domain.NewPaymentError(domain.ErrCodeAccountAccessDenied, "Destination account access denied")
		}
		return err
	}

	return nil
}

// validateTransferShape checks the request-level invariants shared by both
// entry points.
func validateTransferShape(sourceID, destinationID string, amount decimal.Decimal) error {
	if sourceID == destinationID {
		return domain.NewPaymentError(domain.ErrCodeSameAccount, "Source and destination accounts cannot be the same")
	}
	if !amount.IsPositive() {
		return domain.NewPaymentError(domain.ErrCodeInvalidAmount, "Transfer amount must be positive")
	}
	return nil
}

// executeTransfer acquires both accounts in canonical order inside one ledger
// transaction, maps the locked rows back to source/destination roles, runs the
// invariant checks, and applies the mutation. When ownerID is non-empty,
// ownership is re-verified on the locked rows before any balance changes.
func (s *Service) executeTransfer(ctx context.Context, tx *domain.Transaction, ownerID string) (*BalanceSnapshot, error) {
	var balances *BalanceSnapshot

	err := s.repo.WithLedgerTx(ctx, func(ltx store.LedgerTx) error {
		firstID, secondID := CanonicalLockOrder(tx.SourceAccountID, tx.DestinationAccountID)

		first, err := s.lockAccount(ctx, ltx, firstID)
		if err != nil {
			return err
		}
		second, err := s.lockAccount(ctx, ltx, secondID)
		if err != nil {
			return err
		}

		source, destination := first, second
		if tx.SourceAccountID != firstID {
			source, destination = second, first
		}

		if ownerID != "" {
			if !source.BelongsToUser(ownerID) {
				return domain.NewPaymentError(domain.ErrCodeAccountAccessDenied, "Source account access denied")
			}
			if !destination.BelongsToUser(ownerID) {
				return domain.NewPaymentError(domain.ErrCodeAccountAccessDenied, "Destination account access denied")
			}
		}

		if err := validateAccountsForTransfer(source, destination, tx.Amount); err != nil {
			return err
		}

		balances, err = applyTransfer(ctx, ltx, source, destination, tx.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (s *Service) lockAccount(ctx context.Context, ltx store.LedgerTx, accountID string) (*domain.Account, error) {
	account, err := ltx.LockAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, domain.NewAccountNotFoundError(accountID)
		}
		return nil, err
	}
	return account, nil
}

// completeTransfer finalizes the record, writes the success audit row, and
// publishes the completion event. The audit write happens even when
// finalization fails: the mutation has committed, so the record is left
// PENDING for reconciliation rather than misreported as failed.
func (s *Service) completeTransfer(ctx context.Context, tx *domain.Transaction, balances *BalanceSnapshot, message string) domain.TransferResult {
	now := time.Now().UTC()
	tx.Status = domain.TransactionStatusCompleted
	tx.CompletedAt = &now
	if err := s.repo.FinalizeTransaction(ctx, tx); err != nil {
		log.Printf("level=error component=transfer msg=\"completed transfer finalization failed; record left pending for reconciliation\" transaction_id=%s err=%v", tx.ID, err)
	}

	s.audit.RecordSuccessfulTransfer(ctx, tx, balances)
	s.publishTransferEvent(ctx, tx, "transfer.completed", "")

	log.Printf("level=info component=transfer msg=\"transfer completed\" transaction_id=%s", tx.ID)
	return domain.SuccessResult(tx.ID, message, tx.TransactionType)
}

// failTransfer is the single failure exit: it converts err to a taxonomy
// code, moves the intent record (when one exists) to FAILED, records the
// failure audit row, publishes the failure event, and builds the result.
func (s *Service) failTransfer(ctx context.Context, tx *domain.Transaction, userID, sourceID, destinationID string, amount decimal.Decimal, err error) domain.TransferResult {
	perr := s.asPaymentError(err)

	transactionID := ""
	if tx != nil {
		transactionID = tx.ID
		reason := perr.Message
		tx.Status = domain.TransactionStatusFailed
		tx.FailureReason = &reason
		if ferr := s.repo.FinalizeTransaction(ctx, tx); ferr != nil && !errors.Is(ferr, store.ErrTransactionFinalized) {
			log.Printf("level=error component=transfer msg=\"failed transfer finalization failed\" transaction_id=%s err=%v", tx.ID, ferr)
		}
	}

	s.audit.RecordFailedTransfer(ctx, transactionID, userID, sourceID, destinationID, amount, perr.Message)
	s.publishTransferEvent(ctx, tx, "transfer.failed", perr.Code)

	log.Printf("level=warn component=transfer msg=\"transfer failed\" user_id=%s error_code=%s reason=%q", userID, perr.Code, perr.Message)
	return domain.FailureResult(perr.Message, perr.Code)
}

// asPaymentError maps any error to the taxonomy. Business errors pass
// through; known store conditions become their retryable codes; everything
// else is logged with context and reported as INTERNAL_ERROR without detail.
func (s *Service) asPaymentError(err error) *domain.PaymentError {
	var perr *domain.PaymentError
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, store.ErrVersionConflict):
		return domain.NewPaymentError(domain.ErrCodeConcurrentModification, "Account was modified concurrently, please retry")
	case errors.Is(err, store.ErrLockTimeout):
		return domain.NewPaymentError(domain.ErrCodeInternalError, "Account lock contention, please retry")
	case errors.Is(err, store.ErrDuplicateReference):
		return domain.NewPaymentError(domain.ErrCodeDuplicateReference, "Reference number already exists for this user")
	default:
		log.Printf("level=error component=transfer msg=\"unexpected transfer error\" err=%v", err)
		return domain.NewPaymentError(domain.ErrCodeInternalError, "Internal server error")
	}
}

func (s *Service) publishTransferEvent(ctx context.Context, tx *domain.Transaction, routingKey, errorCode string) {
	if s.events == nil || tx == nil {
		return
	}
	event := rabbitmq.TransferEvent{
		TransactionID:        tx.ID,
		UserID:               tx.UserID,
		SourceAccountID:      tx.SourceAccountID,
		DestinationAccountID: tx.DestinationAccountID,
		Amount:               tx.Amount.String(),
		Currency:             tx.Currency,
		Status:               string(tx.Status),
		ErrorCode:            errorCode,
		Timestamp:            time.Now().UTC(),
	}
	if err := s.events.PublishTransferEvent(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=transfer msg=\"transfer event publish failed\" transaction_id=%s routing_key=%s err=%v", tx.ID, routingKey, err)
	}
}

// GetTransactionByID retrieves one transfer record.
func (s *Service) GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			return nil, domain.NewPaymentError(domain.ErrCodeTransactionNotFound, "Transaction not found")
		}
		return nil, err
	}
	return tx, nil
}

// GetUserTransactionHistory lists a user's transfer records, newest first,
// with account display names resolved.
func (s *Service) GetUserTransactionHistory(ctx context.Context, userID string, opts domain.HistoryListOptions) ([]domain.TransactionHistoryEntry, error) {
	transactions, err := s.repo.FindTransactionsByUserID(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return s.mapHistory(ctx, transactions), nil
}

// GetAccountTransactionHistory lists the transfers touching one of the user's
// accounts, newest first. Ownership is verified before any rows are read.
func (s *Service) GetAccountTransactionHistory(ctx context.Context, accountID, userID string, opts domain.HistoryListOptions) ([]domain.TransactionHistoryEntry, error) {
	if _, err := s.repo.FindAccountByIDAndUserID(ctx, accountID, userID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, domain.NewPaymentError(domain.ErrCodeAccountAccessDenied, "Account access denied")
		}
		return nil, err
	}

	transactions, err := s.repo.FindAccountTransactionsByUserID(ctx, accountID, userID, opts)
	if err != nil {
		return nil, err
	}
	return s.mapHistory(ctx, transactions), nil
}

func (s *Service) mapHistory(ctx context.Context, transactions []domain.Transaction) []domain.TransactionHistoryEntry {
	entries := make([]domain.TransactionHistoryEntry, 0, len(transactions))
	for _, tx := range transactions {
		entries = append(entries, domain.TransactionHistoryEntry{
			ID:                     tx.ID,
			SourceAccountID:        tx.SourceAccountID,
			SourceAccountName:      s.accountDisplayName(ctx, tx.SourceAccountID),
			DestinationAccountID:   tx.DestinationAccountID,
			DestinationAccountName: s.accountDisplayName(ctx, tx.DestinationAccountID),
			Amount:                 tx.Amount,
			Currency:               tx.Currency,
			Status:                 tx.Status,
			TransactionType:        tx.TransactionType,
			Description:            tx.Description,
			Reference:              tx.Reference,
			CreatedAt:              tx.CreatedAt,
			CompletedAt:            tx.CompletedAt,
		})
	}
	return entries
}

func (s *Service) accountDisplayName(ctx context.Context, accountID string) string {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return "Unknown Account"
	}
	return account.DisplayName()
}
