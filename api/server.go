/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTES:
  POST /api/ledger              All mutations (action-dispatched)
  GET  /api/transactions        Student transaction history
  GET  /api/transactions/{id}   Single transaction
  GET  /api/salaries            Teacher salary records
  GET  /api/salaries/{id}       Single salary
  GET  /api/salaries/{id}/items Salary itemized ledger
  GET  /api/invoices/{id}       Invoice with items
  GET  /api/health              Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  front with a gateway or reverse proxy that authenticates.

SEE ALSO:
  - gateway.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// The gateway: all mutations go through one endpoint
		r.Post("/ledger", h.Ledger)

		// Read routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Get("/{id}", h.GetTransaction)
		})
		r.Route("/salaries", func(r chi.Router) {
			r.Get("/", h.ListSalaries)
			r.Get("/{id}", h.GetSalary)
			r.Get("/{id}/items", h.GetSalaryItems)
		})
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/{id}", h.GetInvoice)
		})

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
