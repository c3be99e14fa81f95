/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/owners/*     Owner registration, inspection, reconciliation
  /api/payments/*   Report, approve, reject, delete
  /api/reconcile    Bulk credit sweep
  /api/debts/*      Debt generation
  /metrics          Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. Deploy behind an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Owner routes
		r.Route("/owners", func(r chi.Router) {
			r.Get("/", h.ListOwners)
			r.Post("/", h.CreateOwner)
			r.Get("/{id}", h.GetOwner)
			r.Get("/{id}/debts", h.ListOwnerDebts)
			r.Post("/{id}/reconcile", h.ReconcileOwner)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.ReportPayment)
			r.Get("/{id}", h.GetPayment)
			r.Post("/{id}/approve", h.ApprovePayment)
			r.Post("/{id}/reject", h.RejectPayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Admin routes
		r.Post("/reconcile", h.ReconcileAll)
		r.Route("/debts", func(r chi.Router) {
			r.Post("/monthly", h.GenerateMonthlyDebts)
			r.Post("/mass", h.GenerateMassDebt)
		})
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
