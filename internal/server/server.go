package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/vkprobe/internal/report"
	"github.com/cwbudde/vkprobe/internal/snapshot"
	"github.com/cwbudde/vkprobe/internal/vk"
)

// Server exposes the device report and snapshot capture over HTTP
type Server struct {
	driver      vk.Driver
	addr        string
	broadcaster *EventBroadcaster
	watcher     *Watcher
	server      *http.Server
}

// NewServer creates a new HTTP server probing devices through driver
func NewServer(addr string, driver vk.Driver, pollInterval time.Duration) *Server {
	broadcaster := NewEventBroadcaster()
	return &Server{
		driver:      driver,
		addr:        addr,
		broadcaster: broadcaster,
		watcher:     NewWatcher(driver, broadcaster, pollInterval),
	}
}

// Start runs the device watcher and serves HTTP until Shutdown
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register API routes
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/v1/devices", s.handleDevices)
	mux.HandleFunc("/api/v1/devices/", s.handleDeviceByIndex)
	mux.HandleFunc("/api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/v1/report", s.handleReport)
	mux.HandleFunc("/api/v1/events", s.handleEvents)

	// Wrap with middleware
	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	s.watcher.Start()

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.watcher.Stop()
	s.broadcaster.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealthz handles GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDevices handles GET /api/v1/devices
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := snapshot.Capture(s.driver)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap.Devices)
}

// handleDeviceByIndex handles GET /api/v1/devices/:index
func (s *Server) handleDeviceByIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	if raw == "" {
		http.Error(w, "Device index required", http.StatusBadRequest)
		return
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		http.Error(w, "Invalid device index", http.StatusBadRequest)
		return
	}

	snap, err := snapshot.Capture(s.driver)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if idx >= len(snap.Devices) {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, snap.Devices[idx])
}

// handleSnapshot handles GET /api/v1/snapshot with a fresh capture per
// request
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := snapshot.Capture(s.driver)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleReport handles GET /api/v1/report, serving the plain-text device
// report. Unlike the CLI path the report is buffered, so a failing query
// yields an error response instead of a truncated body.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var out, diag bytes.Buffer
	if err := report.Render(s.driver, &out, &diag); err != nil {
		writeQueryError(w, err)
		return
	}
	if diag.Len() > 0 {
		slog.Warn("Report diagnostics", "detail", strings.TrimSpace(diag.String()))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write(out.Bytes()); err != nil {
		slog.Error("Failed to write report", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
