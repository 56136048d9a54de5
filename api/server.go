/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the tablet / web frontends

ROUTE GROUPS:
  /api/recordBehavior, /api/redeemReward, /api/recordBatch
  /api/families/*       Families, children and catalogs
  /api/children/*       Balances, history, checklist, preview
  /api/activities/*     Approvals
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Admin operations
  /metrics              Prometheus (when a handler is given)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter. The zero value allows every origin
// and serves no metrics.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Recording
		r.Post("/recordBehavior", h.RecordBehavior)
		r.Post("/redeemReward", h.RedeemReward)
		r.Post("/recordBatch", h.RecordBatch)

		// Family, children and catalog routes
		r.Route("/families", func(r chi.Router) {
			r.Get("/", h.ListFamilies)
			r.Post("/", h.CreateFamily)
			r.Route("/{familyID}", func(r chi.Router) {
				r.Get("/", h.GetFamily)
				r.Get("/children", h.ListChildren)
				r.Post("/children", h.CreateChild)
				r.Get("/behaviors", h.ListBehaviors)
				r.Post("/behaviors", h.SaveBehavior)
				r.Get("/rewards", h.ListRewards)
				r.Post("/rewards", h.SaveReward)
				r.Get("/catalog", h.ExportCatalog)
				r.Post("/catalog", h.ImportCatalog)
				r.Post("/catalog/starter", h.LoadStarterCatalog)
			})
		})

		// Child views
		r.Route("/children/{childID}", func(r chi.Router) {
			r.Get("/", h.GetChild)
			r.Get("/balance", h.GetBalance)
			r.Get("/summary", h.GetSummary)
			r.Get("/progress", h.GetProgress)
			r.Get("/activities", h.GetActivities)
			r.Get("/eligibility", h.GetEligibility)
			r.Post("/preview", h.PreviewBatch)
		})

		// Approval routes
		r.Route("/activities", func(r chi.Router) {
			r.Get("/pending", h.ListPending)
			r.Get("/{activityID}", h.GetActivity)
			r.Post("/{activityID}/approve", h.ApproveActivity)
			r.Post("/{activityID}/reject", h.RejectActivity)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/audit", h.TriggerAudit)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
