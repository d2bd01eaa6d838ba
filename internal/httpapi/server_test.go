package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VerseEngine/verse-entrance-server/internal/entrance"
	"github.com/VerseEngine/verse-entrance-server/internal/signaling"
)

func TestStatusHandlerServesVersionAndClientCount(t *testing.T) {
	s := &Server{
		Entrance:      &entrance.Handler{Registry: signaling.NewRegistry()},
		Version:       "test-1",
		ClientCountFn: func() int32 { return 7 },
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.StatusHandler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "test-1", body["version"])
	require.EqualValues(t, 7, body["client_count"])
}

func TestStatusHandlerMetricsIncludesPrefix(t *testing.T) {
	s := &Server{
		Entrance:         &entrance.Handler{Registry: signaling.NewRegistry()},
		Version:          "test-1",
		PrometheusPrefix: "myapp_",
		ClientCountFn:    func() int32 { return 3 },
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.StatusHandler().ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `myapp_instance{version="test-1"} 1`)
	require.Contains(t, rec.Body.String(), "myapp_client_count 3")
}

func TestControlHandlerSucceeds(t *testing.T) {
	called := false
	s := &Server{
		UpdateClusterKey: "secret123",
		Reconcile: func(ctx context.Context) error {
			called = true
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/update-cluster-secret123", nil)
	rec := httptest.NewRecorder()
	s.ControlHandler().ServeHTTP(rec, req)
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"update":true`)
	require.Equal(t, "no-transform", rec.Header().Get("Cache-Control"))
}

func TestControlHandlerReportsFailure(t *testing.T) {
	s := &Server{
		UpdateClusterKey: "secret123",
		Reconcile: func(ctx context.Context) error {
			return errors.New("aws unreachable")
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/update-cluster-secret123", nil)
	rec := httptest.NewRecorder()
	s.ControlHandler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"update":false`)
}

func TestBuildPublicMuxRegistersControlRouteOnlyWhenKeySet(t *testing.T) {
	s := &Server{Entrance: &entrance.Handler{Registry: signaling.NewRegistry()}}
	mux := s.BuildPublicMux()
	req := httptest.NewRequest(http.MethodGet, "/update-cluster-anything", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflightAllowsPost(t *testing.T) {
	s := &Server{Entrance: &entrance.Handler{Registry: signaling.NewRegistry()}}
	mux := s.BuildPublicMux()
	req := httptest.NewRequest(http.MethodOptions, "/enter", nil)
	req.Header.Set("Origin", "https://client.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
