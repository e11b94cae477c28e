package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cyber-monitor/backend/internal/device/domain"
	"cyber-monitor/backend/internal/device/repository"
	"cyber-monitor/backend/internal/platform/httpjson"
)

// Handler serves the device registry.
type Handler struct {
	repo repository.Repository
}

// NewHandler returns a device handler backed by repo.
func NewHandler(repo repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes mounts GET / and GET /{id}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", 100)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	devices, err := h.repo.List(r.Context(), limit)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	if devices == nil {
		devices = []*domain.Device{}
	}
	httpjson.OK(w, devices)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	if d == nil {
		httpjson.Fail(w, http.StatusNotFound, "not_found", "device not found")
		return
	}
	httpjson.OK(w, d)
}
