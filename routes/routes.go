package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/trailguard/app"
	"github.com/upb/trailguard/handlers"
	"github.com/upb/trailguard/middleware"
	"github.com/upb/trailguard/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.APIKeyHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})

	// Health check endpoints
	var checks map[string]handlers.HealthChecker
	if checker, ok := deps.Store.(handlers.HealthChecker); ok {
		checks = map[string]handlers.HealthChecker{"store": checker}
	}
	health := handlers.NewHealthHandler(checks, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", deps.Prometheus.Handler())
	}

	incidents := handlers.NewIncidentHandler(deps.Engine, deps.Metrics, deps.Logger)
	ingest := handlers.NewIngestHandler(deps.Writer, deps.Metrics, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole(cfg.Auth.RequiredGroup))
			r.Get("/incidents", incidents.HandleList)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAPIKey(cfg.Auth.IngestAPIKey))
			r.Post("/events", ingest.HandleIngest)
		})
	})

	return r
}
