package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyber-monitor/backend/internal/alert"
	"cyber-monitor/backend/internal/event/domain"
)

// mockDispatcher implements Dispatcher for tests.
type mockDispatcher struct {
	lastReq   alert.Request
	lastTest  string
	sendErr   error
	testErr   error
	sendCalls int
}

func (m *mockDispatcher) Dispatch(ctx context.Context, req alert.Request) error {
	m.sendCalls++
	m.lastReq = req
	return m.sendErr
}

func (m *mockDispatcher) SendTest(ctx context.Context, to string) error {
	m.lastTest = to
	return m.testErr
}

func serve(d Dispatcher, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/alerts", NewHandler(d).Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSend(t *testing.T) {
	d := &mockDispatcher{}
	rec := serve(d, http.MethodPost, "/alerts/send", `{"to":"soc@example.com","subject":"s","message":"m","priority":"critical"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, alert.Request{To: "soc@example.com", Subject: "s", Message: "m", Priority: "critical"}, d.lastReq)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Alert sent successfully!", body["message"])
}

func TestSend_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"malformed body", `{"to":`, nil, http.StatusBadRequest, "validation"},
		{"validation", `{}`, domain.Invalid("to", "required"), http.StatusBadRequest, "validation"},
		{"transport", `{"message":"m"}`, &alert.TransportError{Op: "send", Err: errors.New("refused")}, http.StatusBadGateway, "transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{sendErr: tt.err}
			rec := serve(d, http.MethodPost, "/alerts/send", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantKind, body["kind"])
		})
	}
}

func TestTest(t *testing.T) {
	d := &mockDispatcher{}
	rec := serve(d, http.MethodPost, "/alerts/test", `{"email":"ops@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@example.com", d.lastTest)
	assert.Equal(t, "Test email sent!", decode(t, rec)["message"])
}

func TestTest_WithoutEmailVerifies(t *testing.T) {
	d := &mockDispatcher{}
	rec := serve(d, http.MethodPost, "/alerts/test", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "", d.lastTest)
	assert.Equal(t, "Email configuration verified!", decode(t, rec)["message"])
}

func TestTest_TransportFailure(t *testing.T) {
	d := &mockDispatcher{testErr: &alert.TransportError{Op: "verify", Err: errors.New("bad credentials")}}
	rec := serve(d, http.MethodPost, "/alerts/test", `{"email":"ops@example.com"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
