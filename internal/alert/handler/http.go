package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"cyber-monitor/backend/internal/alert"
	"cyber-monitor/backend/internal/platform/httpjson"
)

// Dispatcher is the alert capability used by the handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, req alert.Request) error
	SendTest(ctx context.Context, to string) error
}

type Handler struct {
	dispatcher Dispatcher
}

func NewHandler(d Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Routes mounts POST /send and POST /test.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/send", h.send)
	r.Post("/test", h.test)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req alert.Request
	if err := httpjson.Decode(w, r, &req, 0); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	if err := h.dispatcher.Dispatch(r.Context(), req); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.Message(w, "Alert sent successfully!", nil)
}

type testRequest struct {
	Email string `json:"email"`
}

func (h *Handler) test(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := httpjson.Decode(w, r, &req, 0); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	if err := h.dispatcher.SendTest(r.Context(), req.Email); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		httpjson.Message(w, "Email configuration verified!", nil)
		return
	}
	httpjson.Message(w, "Test email sent!", nil)
}
