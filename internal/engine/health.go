package engine

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is the part of the trace store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer provides HTTP health check and metrics endpoints.
type HealthServer struct {
	store  Pinger
	addr   string
	server *http.Server
}

// NewHealthServer creates a health server listening on addr, e.g. ":8080".
func NewHealthServer(store Pinger, addr string) *HealthServer {
	return &HealthServer{
		store: store,
		addr:  addr,
	}
}

// Handler returns the mux serving /healthz and /metrics.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start starts the HTTP server in the background.
func (h *HealthServer) Start() error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Engine] Health server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if the trace store is reachable, 503 otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Trace: "connected"}
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Trace = "disconnected"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Trace  string `json:"trace,omitempty"`
	Error  string `json:"error,omitempty"`
}
