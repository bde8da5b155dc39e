package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sumandas0/querygate/internal/api/handlers"
	"github.com/sumandas0/querygate/internal/api/middleware"
	"github.com/sumandas0/querygate/internal/core"
	"github.com/sumandas0/querygate/internal/health"
	"github.com/sumandas0/querygate/internal/integration"
)

// Router sets up and configures the HTTP router
type Router struct {
	engine          *core.Engine
	searchHandler   *handlers.SearchHandler
	indexHandler    *handlers.IndexHandler
	settingsHandler *handlers.SettingsHandler
	healthChecker   *health.HealthChecker
	features        *integration.AdvancedFeaturesManager
}

// NewRouter creates a new router instance
func NewRouter(engine *core.Engine, healthChecker *health.HealthChecker) *Router {
	validator := core.NewValidator()

	return &Router{
		engine:          engine,
		searchHandler:   handlers.NewSearchHandler(engine),
		indexHandler:    handlers.NewIndexHandler(engine, validator),
		settingsHandler: handlers.NewSettingsHandler(engine),
		healthChecker:   healthChecker,
	}
}

// SetAdvancedFeatures wires observability and security middleware into the
// router. Must be called before SetupRoutes.
func (r *Router) SetAdvancedFeatures(features *integration.AdvancedFeaturesManager) {
	r.features = features
}

// SetupRoutes configures all routes and middleware
func (r *Router) SetupRoutes() http.Handler {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.ErrorHandler())

	if r.features != nil {
		obs := r.features.GetObservability()
		router.Use(obs.GetLogging().LoggingMiddleware())
		router.Use(obs.GetTracing().TraceMiddleware())
		router.Use(obs.GetMetrics().MetricsMiddleware())
		router.Use(r.features.GetSecurity().GetRateLimiter().RateLimitMiddleware())
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Trace-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Use(chiMiddleware.Timeout(30 * time.Second))

	router.Get("/health", r.healthCheck)
	router.Get("/ready", r.readinessCheck)
	router.Get("/metrics", r.metrics)

	router.Route("/api/v1", func(apiRouter chi.Router) {
		apiRouter.Route("/indexes", func(indexRouter chi.Router) {
			indexRouter.Post("/", r.indexHandler.CreateIndex)
			indexRouter.Get("/", r.indexHandler.ListIndexes)

			indexRouter.Route("/{indexUID}", func(uidRouter chi.Router) {
				uidRouter.Get("/", r.indexHandler.GetIndex)
				uidRouter.Delete("/", r.indexHandler.DeleteIndex)

				uidRouter.Get("/search", r.searchHandler.Search)
				uidRouter.Post("/search", r.searchHandler.SearchPost)

				uidRouter.Route("/settings", func(settingsRouter chi.Router) {
					settingsRouter.Get("/", r.settingsHandler.GetSettings)
					settingsRouter.Get("/displayed-attributes", r.settingsHandler.GetDisplayedAttributes)
					settingsRouter.Put("/displayed-attributes", r.settingsHandler.UpdateDisplayedAttributes)
					settingsRouter.Get("/attributes-for-faceting", r.settingsHandler.GetFacetedAttributes)
					settingsRouter.Put("/attributes-for-faceting", r.settingsHandler.UpdateFacetedAttributes)
				})
			})
		})
	})

	return router
}

// healthCheck returns the health status of the system
// @Summary Health check
// @Description Returns the health status of the service and its dependencies
// @Tags health
// @Produce json
// @Success 200 {object} health.SystemHealth
// @Failure 503 {object} health.SystemHealth
// @Router /health [get]
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if r.healthChecker == nil {
		sendStatus(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	systemHealth := r.healthChecker.Check(ctx)

	statusCode := http.StatusOK
	if systemHealth.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	sendStatus(w, statusCode, systemHealth)
}

// readinessCheck returns the readiness status of the system
// @Summary Readiness check
// @Description Indicates if the service is ready to accept requests
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} health.SystemHealth
// @Router /ready [get]
func (r *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if r.healthChecker != nil {
		lastResults := r.healthChecker.GetLastResults()
		if lastResults.Status == health.StatusUnhealthy {
			sendStatus(w, http.StatusServiceUnavailable, lastResults)
			return
		}
	}

	sendStatus(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}

// metrics exposes Prometheus metrics when enabled; without metrics it falls
// back to a plain JSON feature health summary.
func (r *Router) metrics(w http.ResponseWriter, req *http.Request) {
	if r.features != nil && r.features.GetObservability().GetMetrics().IsEnabled() {
		r.features.GetObservability().GetMetrics().Handler().ServeHTTP(w, req)
		return
	}

	if r.features != nil {
		sendStatus(w, http.StatusOK, r.features.HealthCheck(req.Context()))
		return
	}

	http.NotFound(w, req)
}

func sendStatus(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
