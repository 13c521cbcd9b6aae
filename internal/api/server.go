package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/coursewatch/coursewatch/internal/logbuffer"
	"github.com/coursewatch/coursewatch/internal/scheduler"
	"github.com/coursewatch/coursewatch/internal/types"
)

// StatusProvider exposes the scheduler's progress.
type StatusProvider interface {
	Status() scheduler.Status
}

// Info is static process information shown on /status.
type Info struct {
	Version  string              `json:"version"`
	Commit   string              `json:"commit"`
	Policy   string              `json:"policy"`
	Interval string              `json:"interval"`
	Channels []string            `json:"channels"`
	Tracked  []types.ResourceKey `json:"tracked"`
}

// Server provides read-only HTTP endpoints for health, status, logs and metrics.
type Server struct {
	status    StatusProvider
	info      Info
	logBuffer *logbuffer.Buffer
	gatherer  prometheus.Gatherer
	logger    zerolog.Logger
	startTime time.Time
	srv       *http.Server
}

// NewServer creates a new API server listening on addr.
func NewServer(addr string, status StatusProvider, info Info, logBuffer *logbuffer.Buffer, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	s := &Server{
		status:    status,
		info:      info,
		logBuffer: logBuffer,
		gatherer:  gatherer,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/logs", s.handleLogsAPI)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.srv.Addr).
		Msg("Starting status server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleHealth reports healthy once the last cycle fetched the snapshot.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	healthy := st.ConsecutiveFailures == 0
	if !healthy {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"status":               "degraded",
			"consecutive_failures": st.ConsecutiveFailures,
			"last_error":           st.LastError,
		})
		return
	}
	writeJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the scheduler status and static configuration.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"scheduler": s.status.Status(),
		"info":      s.info,
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}

// handleLogsAPI returns recent log entries, ?limit=N (default 200).
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries := []logbuffer.Entry{}
	if s.logBuffer != nil {
		entries = s.logBuffer.Recent(limit)
	}

	writeJSON(w, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
