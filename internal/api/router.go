// Package api exposes the published gold tables and the run registry over
// a read-only HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-etl/internal/api/handlers"
	"github.com/dvloznov/budget-etl/internal/api/middleware"
)

// Store is everything the API reads.
type Store interface {
	handlers.GoldReader
	handlers.RunReader
}

// NewRouter mounts every endpoint.
func NewRouter(store Store, allowedOrigins []string, log zerolog.Logger) http.Handler {
	gold := handlers.NewGoldHandler(store, log)
	runs := handlers.NewRunsHandler(store, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, r, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/kpis", gold.ListKpis)
		r.Get("/trend", gold.ListTrend)
		r.Get("/runs", runs.ListRuns)
		r.Get("/runs/{batchID}", runs.GetRun)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
