package app

import (
	"net/http"

	"studyTracker/internal/config"
	"studyTracker/internal/handlers"
	"studyTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter собирает маршруты. /health и /metrics открыты, /tasks только с токеном.
func NewRouter(h *handlers.TaskHandler, tokens middleware.TokenValidator, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Traceparent"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(cfg.RateLimit))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens))

		r.Get("/", h.ListTasks)              // GET /tasks
		r.Post("/", h.PostTask)              // POST /tasks
		r.Get("/overdue", h.GetOverdueTasks) // GET /tasks/overdue

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTaskByID)        // GET /tasks/{id}
			r.Put("/", h.UpdateTaskByID)     // PUT /tasks/{id}
			r.Patch("/", h.UpdateTaskByID)   // PATCH /tasks/{id}
			r.Delete("/", h.DeleteTaskByID)  // DELETE /tasks/{id}
			r.Patch("/toggle", h.ToggleTask) // PATCH /tasks/{id}/toggle
		})
	})

	return otelhttp.NewHandler(r, "study-tracker")
}
