/**
 * @description
 * This file contains the HTTP handlers for the payments-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic, models, and the error taxonomy.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/corebank/payments-service/internal/app"
	"github.com/corebank/payments-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service *app.Service
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service *app.Service) *PaymentHandlers {
	return &PaymentHandlers{service: service}
}

// TransferHandler handles authenticated user transfer requests.
func (h *PaymentHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	// Retrieve the authenticated user's ID from the context.
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.UserTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// The initiator is always the token subject, never a body field.
	req.UserID = userID

	log.Printf("level=info component=api endpoint=transfer outcome=accepted user_id=%s source=%s destination=%s amount=%s",
		userID, req.SourceAccountID, req.DestinationAccountID, req.Amount)

	result := h.service.TransferFunds(r.Context(), req)
	if !result.Success {
		h.writeJSON(w, statusForErrorCode(result.ErrorCode), result)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// SystemTransferHandler handles internal server-to-server transfer requests.
// No ownership checks apply; the route is protected by the internal API key.
func (h *PaymentHandlers) SystemTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=system_transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log.Printf("level=info component=api endpoint=system_transfer outcome=accepted source=%s destination=%s amount=%s",
		req.SourceAccountID, req.DestinationAccountID, req.Amount)

	result := h.service.SystemTransferFunds(r.Context(), req)
	if !result.Success {
		h.writeJSON(w, statusForErrorCode(result.ErrorCode), result)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// GetTransactionByIDHandler handles requests to fetch an individual transfer record.
func (h *PaymentHandlers) GetTransactionByIDHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	transactionID := strings.TrimSpace(chi.URLParam(r, "id"))
	if transactionID == "" {
		h.writeError(w, http.StatusBadRequest, "Transaction ID is required")
		return
	}

	tx, err := h.service.GetTransactionByID(r.Context(), transactionID)
	if err != nil {
		h.writeServiceError(w, err, "get_transaction_by_id")
		return
	}

	// The record is only visible to its initiator. Report not-found rather
	// than forbidden so transaction ids of other users are not confirmed.
	if tx.UserID != userID {
		h.writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// GetTransactionHistoryHandler handles requests to list the authenticated
// user's transfer history.
func (h *PaymentHandlers) GetTransactionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	opts, err := parseHistoryOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := h.service.GetUserTransactionHistory(r.Context(), userID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_history outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, transactions)
}

// GetAccountTransactionHistoryHandler handles requests to list the transfers
// touching one of the authenticated user's accounts.
func (h *PaymentHandlers) GetAccountTransactionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	accountID := strings.TrimSpace(chi.URLParam(r, "accountID"))
	if accountID == "" {
		h.writeError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	opts, err := parseHistoryOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := h.service.GetAccountTransactionHistory(r.Context(), accountID, userID, opts)
	if err != nil {
		h.writeServiceError(w, err, "get_account_history")
		return
	}

	h.writeJSON(w, http.StatusOK, transactions)
}

// parseHistoryOptions reads the optional limit/offset query parameters.
func parseHistoryOptions(r *http.Request) (domain.HistoryListOptions, error) {
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		return domain.HistoryListOptions{}, errors.New("Invalid limit")
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		return domain.HistoryListOptions{}, errors.New("Invalid offset")
	}
	return domain.HistoryListOptions{Limit: limit, Offset: offset}, nil
}

func parseOptionalInt(raw string, fallback int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil || value < 0 {
		return 0, errors.New("invalid integer")
	}
	return value, nil
}

// statusForErrorCode maps taxonomy codes to HTTP statuses.
func statusForErrorCode(code string) int {
	switch code {
	case domain.ErrCodeUserNotFound, domain.ErrCodeAccountNotFound, domain.ErrCodeTransactionNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUserInactive, domain.ErrCodeAccountAccessDenied, domain.ErrCodeAccountInactive:
		return http.StatusForbidden
	case domain.ErrCodeInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.ErrCodeDuplicateReference, domain.ErrCodeConcurrentModification:
		return http.StatusConflict
	case domain.ErrCodeSameAccount, domain.ErrCodeInvalidAmount, domain.ErrCodeCurrencyMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a query-path error to an HTTP response. Taxonomy
// errors keep their code and message; anything else is an opaque 500.
func (h *PaymentHandlers) writeServiceError(w http.ResponseWriter, err error, endpoint string) {
	var perr *domain.PaymentError
	if errors.As(err, &perr) {
		h.writeJSON(w, statusForErrorCode(perr.Code), map[string]string{
			"error":      perr.Message,
			"error_code": perr.Code,
		})
		return
	}
	log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
	h.writeError(w, http.StatusInternalServerError, "Internal server error")
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
