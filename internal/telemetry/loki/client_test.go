package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushEventJSON_LabelsAndTimestamp(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	raw := []byte(`{"id":"e1","kind":"webcam","severity":"critical","deviceId":"lab 01","occurredAt":"2026-06-01T10:00:00Z"}`)
	c := NewClient(srv.URL+"/", "", nil)
	require.NoError(t, c.PushEventJSON(context.Background(), raw))

	require.Len(t, got.Streams, 1)
	s := got.Streams[0]
	assert.Equal(t, "cyber-monitor", s.Stream["job"])
	assert.Equal(t, "webcam", s.Stream["kind"])
	assert.Equal(t, "critical", s.Stream["severity"])
	assert.Equal(t, "lab_01", s.Stream["device_id"])
	require.Len(t, s.Values, 1)
	want := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC).UnixNano()
	assert.Equal(t, string(raw), s.Values[0][1])
	assert.Equal(t, strconv.FormatInt(want, 10), s.Values[0][0])
}

func TestPushEventJSON_UnparseableLine(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL, "job-x", nil).PushEventJSON(context.Background(), []byte("not json")))
	require.Len(t, got.Streams, 1)
	assert.Equal(t, map[string]string{"job": "job-x"}, got.Streams[0].Stream)
}

func TestPush_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "", nil).Push(context.Background(), time.Now(), "line", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestPush_EmptyBaseURL(t *testing.T) {
	require.Error(t, NewClient("", "", nil).Push(context.Background(), time.Now(), "line", nil))
}
