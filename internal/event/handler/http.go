package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/event/service"
	"cyber-monitor/backend/internal/platform/httpjson"
)

// multipartOverhead is the allowance for form fields and boundaries on top of the attachment ceiling.
const multipartOverhead = 1 << 20

// Ingester is the write side used by the handler.
type Ingester interface {
	Ingest(ctx context.Context, in service.NewEvent, att *service.Attachment) (*domain.Event, error)
	Get(ctx context.Context, id string) (*domain.Event, error)
	Acknowledge(ctx context.Context, id string) (*domain.Event, error)
	Remove(ctx context.Context, id string) error
	MaxUploadBytes() int64
}

// Lister is the read side used by the handler.
type Lister interface {
	List(ctx context.Context, f domain.Filter) ([]*domain.Event, error)
}

type Handler struct {
	ingest Ingester
	list   Lister
}

func NewHandler(ingest Ingester, list Lister) *Handler {
	return &Handler{ingest: ingest, list: list}
}

// Routes mounts the event collection and item routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.listEvents)
	r.Post("/", h.create)
	r.Post("/upload", h.upload)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/read", h.acknowledge)
	r.Delete("/{id}", h.remove)
}

type deviceInfoRequest struct {
	Hostname     string `json:"hostname"`
	Platform     string `json:"platform"`
	IP           string `json:"ip"`
	AgentVersion string `json:"agentVersion"`
	Version      string `json:"version"`
}

// eventRequest accepts the current field names and the older agent names (type, data, timestamp).
type eventRequest struct {
	Kind       domain.Kind        `json:"kind"`
	Type       domain.Kind        `json:"type"`
	Payload    json.RawMessage    `json:"payload"`
	Data       json.RawMessage    `json:"data"`
	DeviceID   string             `json:"deviceId"`
	DeviceInfo *deviceInfoRequest `json:"deviceInfo"`
	Severity   domain.Severity    `json:"severity"`
	OccurredAt *time.Time         `json:"occurredAt"`
	Timestamp  *time.Time         `json:"timestamp"`
	Tags       []string           `json:"tags"`
	Metadata   map[string]string  `json:"metadata"`
}

func (req eventRequest) toNewEvent() service.NewEvent {
	in := service.NewEvent{
		Kind:     req.Kind,
		Payload:  req.Payload,
		DeviceID: req.DeviceID,
		Severity: domain.Severity(strings.ToLower(string(req.Severity))),
		Tags:     req.Tags,
		Metadata: req.Metadata,
	}
	if in.Kind == "" {
		in.Kind = req.Type
	}
	if len(in.Payload) == 0 {
		in.Payload = req.Data
	}
	switch {
	case req.OccurredAt != nil:
		in.OccurredAt = *req.OccurredAt
	case req.Timestamp != nil:
		in.OccurredAt = *req.Timestamp
	}
	if di := req.DeviceInfo; di != nil {
		in.DeviceInfo = &domain.DeviceInfo{Hostname: di.Hostname, Platform: di.Platform, IP: di.IP, AgentVersion: di.AgentVersion}
		if in.DeviceInfo.AgentVersion == "" {
			in.DeviceInfo.AgentVersion = di.Version
		}
	}
	return in
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := httpjson.Decode(w, r, &req, 0); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	e, err := h.ingest.Ingest(r.Context(), req.toNewEvent(), nil)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.Created(w, e)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	limit := h.ingest.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpjson.Error(w, r, domain.Invalid("attachment", "file exceeds %d bytes", limit))
			return
		}
		httpjson.Error(w, r, domain.Invalid("body", "expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var req eventRequest
	if raw := r.FormValue("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			httpjson.Error(w, r, domain.Invalid("data", "malformed JSON: %v", err))
			return
		}
	}

	var att *service.Attachment
	f, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		att = &service.Attachment{
			Filename: hdr.Filename,
			MimeType: hdr.Header.Get("Content-Type"),
			Size:     hdr.Size,
			Body:     f,
		}
	case errors.Is(err, http.ErrMissingFile):
		// data-only upload
	default:
		httpjson.Error(w, r, domain.Invalid("file", "unreadable upload: %v", err))
		return
	}

	e, err := h.ingest.Ingest(r.Context(), req.toNewEvent(), att)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.Created(w, e)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	events, err := h.list.List(r.Context(), f)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, events)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	e, err := h.ingest.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, e)
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	e, err := h.ingest.Acknowledge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, e)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.ingest.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.Message(w, "Event deleted successfully", nil)
}

// parseFilter reads kind|type, deviceId, from|startDate, to|endDate, unread and limit.
// An explicit limit <= 0 lifts the cap.
func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{DeviceID: q.Get("deviceId")}

	kind := domain.Kind(firstOf(q.Get("kind"), q.Get("type")))
	if kind != "" && !kind.Valid() {
		return f, domain.Invalid("kind", "unknown kind %q", kind)
	}
	f.Kind = kind

	var err error
	if f.From, err = parseTime("from", firstOf(q.Get("from"), q.Get("startDate"))); err != nil {
		return f, err
	}
	if f.To, err = parseTime("to", firstOf(q.Get("to"), q.Get("endDate"))); err != nil {
		return f, err
	}
	switch q.Get("unread") {
	case "":
	case "true", "1":
		unread := false
		f.IsRead = &unread
	case "false", "0":
		read := true
		f.IsRead = &read
	default:
		return f, domain.Invalid("unread", "must be true or false")
	}

	if q.Has("limit") {
		limit, err := httpjson.QueryInt(r, "limit", domain.DefaultListLimit)
		if err != nil {
			return f, err
		}
		if limit <= 0 {
			limit = domain.NoLimit
		}
		f.Limit = limit
	}
	return f, nil
}

func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Invalid(field, "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
