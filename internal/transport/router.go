package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/recoverops/dunning/internal/catalog"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Registry *catalog.Registry
	Logger   *zap.Logger

	HealthHandler  http.HandlerFunc
	ReadyHandler   http.HandlerFunc
	MetricsHandler http.Handler
	Stats          StatsProvider

	HandlerTimeout time.Duration
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// request logging middleware.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/healthz", deps.HealthHandler)
	r.Get("/readyz", deps.ReadyHandler)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(HandlerTimeout(deps.HandlerTimeout))
		r.Use(RequestLogging(deps.Logger))

		r.Get("/stats", handleStats(deps.Stats, deps.Logger))
		r.Get("/workflows", handleListWorkflows(deps.Registry))
		r.Get("/workflows/{workflowID}", handleGetWorkflow(deps.Registry))
	})

	return r
}
