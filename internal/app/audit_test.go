package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/corebank/payments-service/internal/domain"
)

func TestRecordSuccessfulTransfer_PopulatesSnapshots(t *testing.T) {
	repo := newMemRepo()
	recorder := NewAuditRecorder(repo)

	now := time.Now().UTC()
	tx := &domain.Transaction{
		ID:                   "tx-1",
		UserID:               "user-1",
		SourceAccountID:      "acc-a",
		DestinationAccountID: "acc-b",
		Amount:               dec("100"),
		Status:               domain.TransactionStatusCompleted,
		Description:          "rent",
		CompletedAt:          &now,
	}
	recorder.RecordSuccessfulTransfer(context.Background(), tx, &BalanceSnapshot{
		SourceBefore: dec("1000"),
		SourceAfter:  dec("900"),
		DestBefore:   dec("500"),
		DestAfter:    dec("600"),
	})

	rows := repo.auditRows()
	if len(rows) != 1 {
		t.Fatalf("expected one audit row, got %d", len(rows))
	}
	row := rows[0]
	if !row.Success || row.TransactionID != "tx-1" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.SourceBalanceBefore == nil || !row.SourceBalanceBefore.Equal(dec("1000")) {
		t.Fatalf("bad source-before: %v", row.SourceBalanceBefore)
	}
	if row.DestBalanceBefore == nil || !row.DestBalanceBefore.Equal(dec("500")) {
		t.Fatalf("bad dest-before: %v", row.DestBalanceBefore)
	}
	if row.ErrorMessage != nil {
		t.Fatalf("success row must carry no error message, got %v", *row.ErrorMessage)
	}
}

func TestRecordFailedTransfer_KeepsRealTransactionID(t *testing.T) {
	repo := newMemRepo()
	recorder := NewAuditRecorder(repo)

	recorder.RecordFailedTransfer(context.Background(), "tx-9", "user-1", "acc-a", "acc-b", dec("50"), "Insufficient funds")

	rows := repo.auditRows()
	if len(rows) != 1 {
		t.Fatalf("expected one audit row, got %d", len(rows))
	}
	row := rows[0]
	if row.TransactionID != "tx-9" {
		t.Fatalf("expected tx-9, got %q", row.TransactionID)
	}
	if row.Success || row.Status != domain.TransactionStatusFailed {
		t.Fatalf("expected failed row, got %+v", row)
	}
	if row.ErrorMessage == nil || *row.ErrorMessage != "Insufficient funds" {
		t.Fatalf("bad error message: %v", row.ErrorMessage)
	}
	if row.SourceBalanceBefore != nil || row.DestBalanceAfter != nil {
		t.Fatal("failure rows must not carry balance snapshots")
	}
}

func TestRecordFailedTransfer_SyntheticID(t *testing.T) {
	repo := newMemRepo()
	recorder := NewAuditRecorder(repo)

	recorder.RecordFailedTransfer(context.Background(), "", "user-1", "acc-a", "acc-b", dec("50"), "User account is not active")

	rows := repo.auditRows()
	if len(rows) != 1 {
		t.Fatalf("expected one audit row, got %d", len(rows))
	}
	if !strings.HasPrefix(rows[0].TransactionID, "FAILED_") {
		t.Fatalf("expected synthetic FAILED_ id, got %q", rows[0].TransactionID)
	}
}

func TestAuditRecorder_AppendFailureIsSwallowed(t *testing.T) {
	repo := newMemRepo()
	repo.appendAuditErr = context.DeadlineExceeded
	recorder := NewAuditRecorder(repo)

	// Neither call may panic or propagate the append error.
	recorder.RecordFailedTransfer(context.Background(), "tx-1", "user-1", "acc-a", "acc-b", dec("50"), "boom")
	recorder.RecordSuccessfulTransfer(context.Background(), &domain.Transaction{ID: "tx-2", Amount: dec("1")}, &BalanceSnapshot{})

	if len(repo.auditRows()) != 0 {
		t.Fatal("expected no persisted rows when append fails")
	}
}
