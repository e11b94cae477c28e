package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"cyber-monitor/backend/internal/platform/httpjson"
)

// Pinger checks connectivity to a dependency (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// Handler serves liveness and readiness probes for Kubernetes, load balancers and CI.
type Handler struct {
	db Pinger
}

// NewHandler returns a health handler. db may be nil when running without a database.
func NewHandler(db Pinger) *Handler {
	return &Handler{db: db}
}

// Routes mounts GET /healthz and GET /readyz.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.live)
	r.Get("/readyz", h.ready)
}

func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	httpjson.OK(w, map[string]string{"status": "ok"})
}

// ready reports 503 when the database does not answer a ping.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("readiness: database ping failed")
			httpjson.Fail(w, http.StatusServiceUnavailable, "not_ready", "database unavailable")
			return
		}
	}
	httpjson.OK(w, map[string]string{"status": "ready"})
}
