/**
 * @description
 * HTTP router setup for the projection service using go-chi/chi. Read-model
 * queries sit behind operator authentication; the internal group serves
 * server-to-server callers holding the shared API key.
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
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the read-model routes.
func NewRouter(h *ProjectionHandlers, jwksURL string, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Projection service is healthy"))
	})

	r.Route("/internal/projections", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Get("/merchants/{merchantID}/balance", h.GetMerchantBalanceHandler)
		r.Get("/merchants/{merchantID}/ledger", h.ListMerchantLedgerHandler)
		r.Get("/vouchers/{voucherID}", h.GetVoucherHandler)
		r.Get("/settlements/{settlementID}", h.GetSettlementHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(OperatorAuthMiddleware(jwksURL))
		r.Get("/merchants/{merchantID}/balance", h.GetMerchantBalanceHandler)
		r.Get("/merchants/{merchantID}/ledger", h.ListMerchantLedgerHandler)
		r.Get("/vouchers/{voucherID}", h.GetVoucherHandler)
		r.Get("/settlements/{settlementID}", h.GetSettlementHandler)
	})

	return r
}
