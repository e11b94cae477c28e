package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	eventdomain "cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/platform/httpjson"
	"cyber-monitor/backend/internal/settings/domain"
)

// Store is the settings capability used by the handler.
type Store interface {
	Get(ctx context.Context) domain.Settings
	Update(ctx context.Context, p domain.Patch) (domain.Settings, error)
}

// View is the GET /settings response.
type View struct {
	domain.Settings
	EmailConfigured bool      `json:"emailConfigured"`
	ServerTime      time.Time `json:"serverTime"`
	Version         string    `json:"version"`
}

type Handler struct {
	store           Store
	emailConfigured bool
	version         string
	now             func() time.Time
}

// NewHandler returns a settings handler. emailConfigured reports whether SMTP credentials are present.
func NewHandler(store Store, emailConfigured bool, version string) *Handler {
	return &Handler{store: store, emailConfigured: emailConfigured, version: version, now: time.Now}
}

// Routes mounts GET / and POST /update.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Post("/update", h.update)
}

func (h *Handler) view(s domain.Settings) View {
	return View{Settings: s, EmailConfigured: h.emailConfigured, ServerTime: h.now().UTC(), Version: h.version}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	httpjson.OK(w, h.view(h.store.Get(r.Context())))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var p domain.Patch
	if err := httpjson.Decode(w, r, &p, 0); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	if p.Empty() {
		httpjson.Error(w, r, eventdomain.Invalid("body", "no settings to update"))
		return
	}
	s, err := h.store.Update(r.Context(), p)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.Message(w, "Settings updated successfully", h.view(s))
}
