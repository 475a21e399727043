package http

import (
	"net/http"

	"github.com/atinyakov/SmartBookmarks/internal/metrics"
	"github.com/atinyakov/SmartBookmarks/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the
// Smart Bookmarks screens and API.
//
// Routes:
//
//	GET  /                                  → redirect to /homepage
//	GET  /login, POST /login                → pages (signed-in users go to /homepage)
//	GET  /auth/callback                     → pages.Callback
//	POST /logout                            → pages.Logout
//	GET  /homepage                          → pages.Homepage (session required)
//	POST /homepage/bookmarks                → pages.AddBookmark
//	GET  /homepage/bookmarks/{id}/delete    → pages.ConfirmDelete
//	POST /homepage/bookmarks/{id}/delete    → pages.DeleteBookmark
//	GET  /api/bookmarks                     → api.List (session required, JSON)
//	POST /api/bookmarks                     → api.Add
//	DELETE /api/bookmarks/{id}?confirm=true → api.Delete
//	GET  /healthz, /readyz, /metrics        → probes and Prometheus
//
// Middleware chain (applied in order):
//  1. RequestID, RealIP, Recoverer
//  2. metrics.Middleware: request counters by route pattern
//  3. WithRequestLogging(logger): logs incoming requests
//  4. gate.Middleware: resolves the session outcome
func NewRouter(
	pages *PageHandler,
	api *APIHandler,
	health *HealthHandler,
	gate *middleware.Gate,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware)

	// Probes stay out of the access log and the session check.
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.WithRequestLogging(logger))
		r.Use(gate.Middleware)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/homepage", http.StatusSeeOther)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RedirectAuthenticated)
			r.Get("/login", pages.LoginPage)
			r.Post("/login", pages.Login)
		})
		r.Get("/auth/callback", pages.Callback)
		r.Post("/logout", pages.Logout)

		r.Route("/homepage", func(r chi.Router) {
			r.Use(middleware.RequireSession)
			r.Get("/", pages.Homepage)
			r.Post("/bookmarks", pages.AddBookmark)
			r.Get("/bookmarks/{id}/delete", pages.ConfirmDelete)
			r.Post("/bookmarks/{id}/delete", pages.DeleteBookmark)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequireSessionAPI)
			r.Get("/bookmarks", api.List)
			r.With(chiMiddleware.AllowContentType("application/json")).Post("/bookmarks", api.Add)
			r.Delete("/bookmarks/{id}", api.Delete)
		})
	})

	return r
}
