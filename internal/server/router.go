// Package server assembles the HTTP API: middleware, route mounting and the listener lifecycle.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cyber-monitor/backend/internal/logger"
	"cyber-monitor/backend/internal/metrics"
	"cyber-monitor/backend/internal/platform/httpjson"
)

// Routes mounts one feature's handlers on a sub-router.
type Routes interface {
	Routes(r chi.Router)
}

// Deps holds the feature handlers and cross-cutting components for the router.
// A nil handler leaves its prefix unmounted.
type Deps struct {
	Events   Routes
	Stats    Routes
	Alerts   Routes
	Settings Routes
	Analyze  Routes
	Devices  Routes
	Health   Routes

	// Verifier enables bearer authentication on API routes when non-nil. Health and metrics stay public.
	Verifier TokenVerifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// NewRouter returns the root handler. API routes are served both at / and under /api.
// Events are additionally mounted at /logs for dashboard compatibility.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(deps.Metrics.Middleware)

	if deps.Health != nil {
		r.Group(deps.Health.Routes)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	api := func(r chi.Router) {
		r.Use(RequireBearer(deps.Verifier))
		mount(r, "/events", deps.Events)
		mount(r, "/logs", deps.Events)
		mount(r, "/stats", deps.Stats)
		mount(r, "/alerts", deps.Alerts)
		mount(r, "/settings", deps.Settings)
		mount(r, "/analyze", deps.Analyze)
		mount(r, "/devices", deps.Devices)
	}
	r.Group(api)
	r.Route("/api", api)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpjson.Fail(w, http.StatusNotFound, "not_found", "route not found")
	})
	return otelhttp.NewHandler(r, "cyber-monitor",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func mount(r chi.Router, prefix string, h Routes) {
	if h == nil {
		return
	}
	r.Route(prefix, h.Routes)
}
