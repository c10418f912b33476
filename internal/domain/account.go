/**
 * @description
 * This file defines the account and user domain models for the payments-service.
 * These structs map directly to the `accounts` and `users` tables and are the
 * plain value records the transfer engine operates on; every read is an explicit
 * repository call, there are no lazy associations.
 *
 * @notes
 * - Balances use `decimal.Decimal` (fixed-point) so financial arithmetic never
 *   goes through floating point.
 * - `Version` is an optimistic concurrency counter compared at write time. A
 *   mismatch is a normal, retryable condition, not a fault.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus enumerates the lifecycle states of an account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusClosed    AccountStatus = "CLOSED"
)

// AccountType enumerates the supported account kinds.
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

// Account represents a single ledger account owned by exactly one user.
// Balance is mutated only through the ledger mutator while the row is locked.
type Account struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountName string          `json:"account_name"`
	AccountType AccountType     `json:"account_type"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	Status      AccountStatus   `json:"status"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsActive reports whether the account can participate in transfers.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// BelongsToUser reports whether the account is owned by the given user.
func (a *Account) BelongsToUser(userID string) bool {
	return a.UserID == userID
}

// DisplayName renders the human-readable account label used in history rows.
func (a *Account) DisplayName() string {
	return a.AccountName + " (" + string(a.AccountType) + ")"
}

// UserStatus enumerates the lifecycle states of a user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
	UserStatusClosed    UserStatus = "CLOSED"
)

// User is the simplified view of a user the transfer engine needs: identity
// plus an active/inactive flag. Profile management lives elsewhere.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsActive reports whether the user may initiate transfers.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
