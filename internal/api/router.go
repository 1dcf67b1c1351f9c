package api

import (
	"encoding/json"
	"net/http"

	"github.com/israelwong/promediamx/internal/api/handlers"
	"github.com/israelwong/promediamx/internal/api/middleware"
	"github.com/israelwong/promediamx/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.TenantExtractor)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-CRM-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.NewAPIKeyAuth(cfg.Auth.APIKeys).Middleware)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		// Function calls decided by the model
		r.Route("/task-executions", func(r chi.Router) {
			r.Post("/", h.CreateTaskExecution)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTaskExecution)
				r.Post("/dispatch", h.DispatchTaskExecution)
			})
		})

		r.Route("/conversations/{id}/messages", func(r chi.Router) {
			r.Get("/", h.ListMessages)
			r.Post("/", h.PostMessage)
		})

		// CRM agenda
		r.Route("/leads/{leadId}/agenda", func(r chi.Router) {
			r.Get("/", h.ListAgenda)
			r.Post("/", h.CreateAgenda)
		})
		r.Patch("/agenda/{id}/status", h.UpdateAgendaStatus)

		r.Get("/capabilities", h.ListCapabilities)
		r.Get("/assistants/{id}/tools", h.AssistantTools)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "promediamx-control-plane",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "promediamx-control-plane",
		})
	}
}
