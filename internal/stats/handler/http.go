package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/platform/httpjson"
	"cyber-monitor/backend/internal/stats"
)

// Aggregator is the stats capability used by the handler.
type Aggregator interface {
	Summary(ctx context.Context) (*stats.Summary, error)
	Timeline(ctx context.Context, days int) ([]domain.DailyActivity, error)
}

type Handler struct {
	stats Aggregator
}

func NewHandler(a Aggregator) *Handler {
	return &Handler{stats: a}
}

// Routes mounts GET / and GET /timeline.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.summary)
	r.Get("/timeline", h.timeline)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.stats.Summary(r.Context())
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, sum)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	days, err := httpjson.QueryInt(r, "days", stats.DefaultTimelineDays)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	buckets, err := h.stats.Timeline(r.Context(), days)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, buckets)
}
