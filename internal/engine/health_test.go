package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dyluth/warren/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// TestHealthCheckEndpoint_MethodNotAllowed verifies non-GET requests are rejected.
func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	server := NewHealthServer(nil, "")

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	server.healthCheckHandler(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthCheckResponse(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		wantCode   int
		wantStatus string
		wantTrace  string
		wantError  string
	}{
		{
			name:       "healthy with a reachable store",
			store:      trace.NewMemoryStore(),
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantTrace:  "connected",
		},
		{
			name:       "unhealthy when the store is unreachable",
			store:      pingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") }),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantTrace:  "disconnected",
			wantError:  "connection refused",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			server := NewHealthServer(tt.store, "")
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.Equal(t, tt.wantTrace, response.Trace)
			assert.Contains(t, response.Error, tt.wantError)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewHealthServer(trace.NewMemoryStore(), "").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "warren_queries_total")
	assert.Contains(t, string(body), "warren_hypothesis_representatives")
}

func TestHealthServerShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, NewHealthServer(nil, "").Shutdown(context.Background()))
}
