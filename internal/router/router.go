// Package router sets up all HTTP routes and middleware chains for the
// hostboard API server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hostboard/internal/handlers"
	"hostboard/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. checkLimiter guards the endpoints that
// trigger outbound probes; nil disables it.
func New(api *handlers.API, checkLimiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecureHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", healthHandler)

	// Probe-triggering routes share one rate limit.
	limited := func(r chi.Router) chi.Router {
		if checkLimiter == nil {
			return r
		}
		return r.With(checkLimiter.Middleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/hosts", func(r chi.Router) {
			r.Get("/", api.ListHosts)
			r.Post("/", api.CreateHost)
			r.Get("/{id}", api.GetHost)
			r.Put("/{id}", api.UpdateHost)
			r.Delete("/{id}", api.DeleteHost)
			r.Post("/{id}/icon", api.UploadIcon)
			limited(r).Post("/{id}/check", api.CheckHost)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", api.ListCategories)
			r.Post("/", api.CreateCategory)
			r.Get("/{id}", api.GetCategory)
			r.Put("/{id}", api.UpdateCategory)
			r.Delete("/{id}", api.DeleteCategory)
		})

		limited(r).Post("/check", api.CheckAll)
		r.Get("/check/last", api.LastCheck)
		r.Get("/locations", api.Locations)
		r.Get("/summary", api.Summary)
		r.Get("/export", api.Export)
		r.Post("/backup", api.Backup)
	})

	r.Get("/img/{name}", api.ServeIcon)
	r.Get("/open/{id}", api.OpenHost)

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
