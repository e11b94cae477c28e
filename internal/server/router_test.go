package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthhandler "cyber-monitor/backend/internal/health/handler"
	"cyber-monitor/backend/internal/logger"
	"cyber-monitor/backend/internal/metrics"
	"cyber-monitor/backend/internal/platform/httpjson"
	"cyber-monitor/backend/internal/security"
)

// stubRoutes answers GET / with its name and the verified subject, if any.
type stubRoutes struct{ name string }

func (s stubRoutes) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sub := ""
		if c, ok := security.ClaimsFrom(r.Context()); ok {
			sub = c.Subject
		}
		httpjson.OK(w, map[string]string{"name": s.name, "subject": sub})
	})
}

func testDeps() Deps {
	return Deps{
		Events:   stubRoutes{"events"},
		Stats:    stubRoutes{"stats"},
		Alerts:   stubRoutes{"alerts"},
		Settings: stubRoutes{"settings"},
		Analyze:  stubRoutes{"analyze"},
		Devices:  stubRoutes{"devices"},
		Health:   healthhandler.NewHandler(nil),
		Metrics:  metrics.New(),
		Logger:   logger.Nop(),
	}
}

func get(t *testing.T, h http.Handler, path, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRouter_MountsAtRootAndAPI(t *testing.T) {
	h := NewRouter(testDeps())
	for _, name := range []string{"events", "stats", "alerts", "settings", "analyze", "devices"} {
		for _, prefix := range []string{"", "/api"} {
			rec, body := get(t, h, prefix+"/"+name, "")
			require.Equal(t, http.StatusOK, rec.Code, prefix+"/"+name)
			assert.Equal(t, name, body["data"].(map[string]any)["name"])
		}
	}
}

func TestRouter_LogsAlias(t *testing.T) {
	rec, body := get(t, NewRouter(testDeps()), "/api/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "events", body["data"].(map[string]any)["name"])
}

func TestRouter_UnknownRouteEnvelope(t *testing.T) {
	rec, body := get(t, NewRouter(testDeps()), "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "not_found", body["kind"])
}

func TestRouter_NilHandlerUnmounted(t *testing.T) {
	deps := testDeps()
	deps.Analyze = nil
	rec, _ := get(t, NewRouter(deps), "/analyze", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_MetricsExposed(t *testing.T) {
	h := NewRouter(testDeps())
	get(t, h, "/stats", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/stats")
}

func TestRouter_BearerAuth(t *testing.T) {
	v, err := security.NewTestTokenVerifier()
	require.NoError(t, err)
	token, err := security.SignTestToken("analyst-7", time.Minute)
	require.NoError(t, err)

	deps := testDeps()
	deps.Verifier = v
	h := NewRouter(deps)

	rec, body := get(t, h, "/api/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", body["kind"])

	rec, _ = get(t, h, "/events", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = get(t, h, "/api/events", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analyst-7", body["data"].(map[string]any)["subject"])

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec, _ = get(t, h, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer   abc  ", "abc"},
		{"BEARER abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, extractBearer(req), tt.header)
	}
}
