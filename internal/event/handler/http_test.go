package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/event/repository"
	"cyber-monitor/backend/internal/event/service"
	"cyber-monitor/backend/internal/stats"
	"cyber-monitor/backend/internal/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
	Field   string          `json:"field"`
}

func newRouter(t *testing.T, maxUpload int64) (http.Handler, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	files, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	svc := service.New(service.Deps{Store: repo, Files: files, Logger: zerolog.Nop(), MaxUploadBytes: maxUpload})
	r := chi.NewRouter()
	h := NewHandler(svc, stats.New(repo, time.UTC))
	r.Route("/events", h.Routes)
	r.Route("/logs", h.Routes)
	return r, repo
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestCreate(t *testing.T) {
	h, _ := newRouter(t, 0)
	body := `{"kind":"clipboard","payload":{"text":"hunter2"},"deviceId":"ws-4","severity":"HIGH","tags":["dlp"]}`
	rec, env := do(t, h, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var e domain.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, domain.KindClipboard, e.Kind)
	assert.Equal(t, domain.SeverityHigh, e.Severity)
	assert.JSONEq(t, `{"text":"hunter2"}`, string(e.Payload))
}

func TestCreate_LegacyFieldNames(t *testing.T) {
	h, repo := newRouter(t, 0)
	body := `{"type":"system","data":{"cpu":97},"deviceId":"ws-4","timestamp":"2026-01-02T03:04:05Z","deviceInfo":{"hostname":"ws-4","version":"1.2"}}`
	rec, _ := do(t, h, httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	events, err := repo.List(context.Background(), domain.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.KindSystem, events[0].Kind)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), events[0].OccurredAt)
	assert.Equal(t, "1.2", events[0].DeviceInfo.AgentVersion)
}

func TestCreate_InvalidKind(t *testing.T) {
	h, repo := newRouter(t, 0)
	rec, env := do(t, h, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"kind":"nope","payload":{},"deviceId":"x"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Kind)
	assert.Equal(t, "kind", env.Field)
	n, _ := repo.Count(context.Background(), domain.Filter{})
	assert.Zero(t, n)
}

func multipartUpload(t *testing.T, data, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("data", data))
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/events/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	h, _ := newRouter(t, 0)
	req := multipartUpload(t, `{"kind":"screenshot","deviceId":"ws-4"}`, "screen.jpg", []byte("jpegdata"))
	rec, env := do(t, h, req)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	var e domain.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))
	ref, ok := e.FileRef()
	require.True(t, ok)
	assert.EqualValues(t, 8, ref.Size)
	assert.Equal(t, "image/jpeg", ref.MimeType)
}

func TestUpload_Oversized(t *testing.T) {
	h, repo := newRouter(t, 1024)
	req := multipartUpload(t, `{"kind":"audio","deviceId":"ws-4"}`, "mic.wav", make([]byte, 4096))
	rec, env := do(t, h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "attachment", env.Field)
	n, _ := repo.Count(context.Background(), domain.Filter{})
	assert.Zero(t, n)
}

func TestUpload_MalformedData(t *testing.T) {
	h, _ := newRouter(t, 0)
	rec, env := do(t, h, multipartUpload(t, `{"kind":`, "a.txt", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "data", env.Field)
}

func seedEvents(t *testing.T, repo *repository.MemoryRepository) []*domain.Event {
	t.Helper()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	var out []*domain.Event
	for i, kind := range []domain.Kind{domain.KindKeylog, domain.KindWebcam, domain.KindKeylog} {
		e := &domain.Event{Kind: kind, Payload: json.RawMessage(`{}`), DeviceID: "ws-1", Severity: domain.SeverityLow, OccurredAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.Create(context.Background(), e))
		out = append(out, e)
	}
	return out
}

func TestList_Filters(t *testing.T) {
	h, repo := newRouter(t, 0)
	seeded := seedEvents(t, repo)

	_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/events?type=keylog", nil))
	var events []domain.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 2)
	assert.Equal(t, seeded[2].ID, events[0].ID, "newest first")

	_, env = do(t, h, httptest.NewRequest(http.MethodGet, "/events?limit=1", nil))
	require.NoError(t, json.Unmarshal(env.Data, &events))
	assert.Len(t, events, 1)

	_, env = do(t, h, httptest.NewRequest(http.MethodGet, "/events?from=2026-04-01T12:30:00Z&to=2026-04-01T13:30:00Z", nil))
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, seeded[1].ID, events[0].ID)
}

func TestList_BadQuery(t *testing.T) {
	h, _ := newRouter(t, 0)
	for _, q := range []string{"kind=nope", "from=yesterday", "limit=ten", "unread=maybe"} {
		rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/events?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAcknowledgeAndDelete(t *testing.T) {
	h, repo := newRouter(t, 0)
	seeded := seedEvents(t, repo)
	id := seeded[0].ID

	rec, env := do(t, h, httptest.NewRequest(http.MethodPatch, "/events/"+id+"/read", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var e domain.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.True(t, e.IsRead)

	rec, env = do(t, h, httptest.NewRequest(http.MethodDelete, "/events/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Event deleted successfully", env.Message)

	rec, env = do(t, h, httptest.NewRequest(http.MethodGet, "/events/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Kind)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPatch, "/events/missing/read", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
