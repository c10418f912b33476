/**
 * @description
 * This file sets up the HTTP router for the payments-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication and rate limiting.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the security and throttling settings the router needs.
type RouterOptions struct {
	JWTSecret string
	// InternalAPIKey protects the system transfer path.
	InternalAPIKey string
	// TransferLimiter may be nil; transfer rate limiting is then disabled.
	TransferLimiter       TransferRateLimiter
	TransferRatePerMinute int
}

// PaymentRoutes creates and returns a new router for the payments service.
func PaymentRoutes(h *PaymentHandlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.JWTSecret))

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(opts.TransferLimiter, "transfer", opts.TransferRatePerMinute, time.Minute))
			r.Post("/payments/transfer", h.TransferHandler)
		})

		r.Get("/payments/transactions", h.GetTransactionHistoryHandler)
		r.Get("/payments/transactions/{id}", h.GetTransactionByIDHandler)
		r.Get("/accounts/{accountID}/transactions", h.GetAccountTransactionHistoryHandler)
	})

	// Internal server-to-server routes protected by the shared API key.
	r.Route("/internal/payments", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(opts.InternalAPIKey))
		r.Post("/transfer", h.SystemTransferHandler)
	})

	return r
}
