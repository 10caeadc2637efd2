package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wwyf/eRPC/internal/config"
	"github.com/wwyf/eRPC/internal/nexus"
)

// HTTPServer provides the operational HTTP endpoints for a running nexus:
// health, counters, and Prometheus metrics.
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	nexus     *nexus.Nexus
	startTime time.Time
}

// NewHTTPServer creates the operational HTTP server.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, nx *nexus.Nexus) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		nexus:     nx,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/stats", h.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Start begins serving in a background goroutine.
func (h *HTTPServer) Start() error {
	h.logger.Info("HTTP server starting", slog.String("address", h.server.Addr))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the context deadline.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")
	return h.server.Shutdown(ctx)
}

// handleHealth reports liveness and basic identity.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"status":         "ok",
		"hostname":       h.nexus.Hostname(),
		"sm_addr":        h.nexus.LocalAddr().String(),
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}
	h.writeJSON(w, resp)
}

// handleStats returns a snapshot of the nexus counters.
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, h.nexus.Stats())
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
