package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corebank/payments-service/internal/app"
	"github.com/corebank/payments-service/internal/domain"
	"github.com/corebank/payments-service/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

const testJWTSecret = "test-secret"
const testInternalKey = "internal-key"

// apiRepoStub is a minimal in-memory store.Repository for handler tests.
type apiRepoStub struct {
	users        map[string]*domain.User
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
}

func newAPIRepoStub() *apiRepoStub {
	return &apiRepoStub{
		users:        make(map[string]*domain.User),
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
	}
}

func (s *apiRepoStub) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (s *apiRepoStub) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (s *apiRepoStub) FindAccountByIDAndUserID(ctx context.Context, accountID, userID string) (*domain.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok || account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (s *apiRepoStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	copied := *tx
	s.transactions[tx.ID] = &copied
	return nil
}

func (s *apiRepoStub) FinalizeTransaction(ctx context.Context, tx *domain.Transaction) error {
	stored, ok := s.transactions[tx.ID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	if stored.Status != domain.TransactionStatusPending {
		return store.ErrTransactionFinalized
	}
	stored.Status = tx.Status
	stored.CompletedAt = tx.CompletedAt
	stored.FailureReason = tx.FailureReason
	return nil
}

func (s *apiRepoStub) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *apiRepoStub) ExistsTransactionByReferenceAndUserID(ctx context.Context, reference, userID string) (bool, error) {
	return false, nil
}

func (s *apiRepoStub) FindTransactionsByUserID(ctx context.Context, userID string, opts domain.HistoryListOptions) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *apiRepoStub) FindAccountTransactionsByUserID(ctx context.Context, accountID, userID string, opts domain.HistoryListOptions) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID && (tx.SourceAccountID == accountID || tx.DestinationAccountID == accountID) {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *apiRepoStub) AppendAudit(ctx context.Context, audit *domain.TransactionAudit) error {
	return nil
}

func (s *apiRepoStub) WithLedgerTx(ctx context.Context, fn func(ltx store.LedgerTx) error) error {
	return fn(&apiLedgerTxStub{repo: s})
}

type apiLedgerTxStub struct {
	repo *apiRepoStub
}

func (t *apiLedgerTxStub) LockAccountForUpdate(ctx context.Context, accountID string) (*domain.Account, error) {
	account, ok := t.repo.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (t *apiLedgerTxStub) UpdateAccountBalance(ctx context.Context, account *domain.Account, newBalance decimal.Decimal) error {
	account.Balance = newBalance
	account.Version++
	return nil
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", value, err)
	}
	return d
}

func seededServer(t *testing.T) (*apiRepoStub, http.Handler) {
	t.Helper()
	repo := newAPIRepoStub()
	repo.users["user-1"] = &domain.User{ID: "user-1", Username: "alice", Status: domain.UserStatusActive}
	repo.accounts["acc-a"] = &domain.Account{
		ID: "acc-a", UserID: "user-1", AccountName: "Everyday", AccountType: domain.AccountTypeChecking,
		Balance: mustDecimal(t, "1000"), Currency: "USD", Status: domain.AccountStatusActive, Version: 1,
	}
	repo.accounts["acc-b"] = &domain.Account{
		ID: "acc-b", UserID: "user-1", AccountName: "Savings", AccountType: domain.AccountTypeSavings,
		Balance: mustDecimal(t, "500"), Currency: "USD", Status: domain.AccountStatusActive, Version: 1,
	}

	service := app.NewService(repo, app.NewAuditRecorder(repo), nil)
	handlers := NewPaymentHandlers(service)
	router := PaymentRoutes(handlers, RouterOptions{
		JWTSecret:      testJWTSecret,
		InternalAPIKey: testInternalKey,
	})
	return repo, router
}

func bearerToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func transferBody(t *testing.T, amount string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"source_account_id":      "acc-a",
		"destination_account_id": "acc-b",
		"amount":                 amount,
		"description":            "rent",
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestTransferHandler_RequiresAuth(t *testing.T) {
	_, router := seededServer(t)

	req := httptest.NewRequest(http.MethodPost, "/payments/transfer", transferBody(t, "100"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTransferHandler_RejectsWrongSigningKey(t *testing.T) {
	_, router := seededServer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/transfer", transferBody(t, "100"))
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTransferHandler_Success(t *testing.T) {
	repo, router := seededServer(t)

	req := httptest.NewRequest(http.MethodPost, "/payments/transfer", transferBody(t, "100"))
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.TransferResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || result.TransactionID == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !repo.accounts["acc-a"].Balance.Equal(mustDecimal(t, "900")) {
		t.Fatalf("expected source balance 900, got %s", repo.accounts["acc-a"].Balance)
	}
}

func TestTransferHandler_InsufficientFundsMapsTo402(t *testing.T) {
	_, router := seededServer(t)

	req := httptest.NewRequest(http.MethodPost, "/payments/transfer", transferBody(t, "100000"))
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var result domain.TransferResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.ErrorCode != domain.ErrCodeInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %s", result.ErrorCode)
	}
}

func TestTransferHandler_IgnoresUserIDInBody(t *testing.T) {
	repo, router := seededServer(t)
	repo.users["user-2"] = &domain.User{ID: "user-2", Username: "bob", Status: domain.UserStatusActive}

	body, _ := json.Marshal(map[string]interface{}{
		"user_id":                "user-1", // must be overridden by the token subject
		"source_account_id":      "acc-a",
		"destination_account_id": "acc-b",
		"amount":                 "100",
	})
	req := httptest.NewRequest(http.MethodPost, "/payments/transfer", bytes.NewBuffer(body))
	req.Header.Set("Authorization", bearerToken(t, "user-2"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSystemTransferHandler_RequiresInternalKey(t *testing.T) {
	_, router := seededServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"source_account_id":      "acc-a",
		"destination_account_id": "acc-b",
		"amount":                 "50",
	})
	req := httptest.NewRequest(http.MethodPost, "/internal/payments/transfer", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without internal key, got %d", rec.Code)
	}
}

func TestSystemTransferHandler_Success(t *testing.T) {
	repo, router := seededServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"source_account_id":      "acc-a",
		"destination_account_id": "acc-b",
		"amount":                 "50",
	})
	req := httptest.NewRequest(http.MethodPost, "/internal/payments/transfer", bytes.NewBuffer(body))
	req.Header.Set("X-Internal-API-Key", testInternalKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.TransferResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.TransactionType != domain.TransactionTypeExternal {
		t.Fatalf("expected EXTERNAL_TRANSFER, got %s", result.TransactionType)
	}
	if repo.transactions[result.TransactionID].UserID != domain.SystemUserID {
		t.Fatalf("expected SYSTEM user stamp")
	}
}

func TestGetTransactionByIDHandler_HidesForeignTransactions(t *testing.T) {
	repo, router := seededServer(t)
	repo.users["user-2"] = &domain.User{ID: "user-2", Username: "bob", Status: domain.UserStatusActive}
	repo.transactions["tx-1"] = &domain.Transaction{
		ID: "tx-1", UserID: "user-1", Status: domain.TransactionStatusCompleted,
		Amount: mustDecimal(t, "10"), Currency: "USD",
	}

	req := httptest.NewRequest(http.MethodGet, "/payments/transactions/tx-1", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-2"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign transaction, got %d", rec.Code)
	}
}

func TestGetTransactionByIDHandler_ReturnsOwnTransaction(t *testing.T) {
	repo, router := seededServer(t)
	repo.transactions["tx-1"] = &domain.Transaction{
		ID: "tx-1", UserID: "user-1", Status: domain.TransactionStatusCompleted,
		Amount: mustDecimal(t, "10"), Currency: "USD",
	}

	req := httptest.NewRequest(http.MethodGet, "/payments/transactions/tx-1", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tx domain.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&tx); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if tx.ID != "tx-1" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestGetAccountTransactionHistoryHandler_ForeignAccount(t *testing.T) {
	repo, router := seededServer(t)
	repo.users["user-2"] = &domain.User{ID: "user-2", Username: "bob", Status: domain.UserStatusActive}

	req := httptest.NewRequest(http.MethodGet, "/accounts/acc-a/transactions", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-2"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign account, got %d", rec.Code)
	}
}

func TestGetAccountTransactionHistoryHandler_InvalidLimit(t *testing.T) {
	_, router := seededServer(t)

	req := httptest.NewRequest(http.MethodGet, "/accounts/acc-a/transactions?limit=abc", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := seededServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
