package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"quorum/internal/agents"
	"quorum/internal/agents/workflow"
	"quorum/internal/api/health"
	"quorum/internal/metrics"
	"quorum/internal/services/execution"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port        int
	ServiceName string
	Version     string
}

// Advisor is the read side of the advisor service exposed over HTTP.
type Advisor interface {
	GetRegistrySnapshot() []agents.WorkerRecord
	HealthReport() workflow.HealthReport
	RecentRuns(n int) []*workflow.Run
	Run(ctx context.Context, id string) (*workflow.Run, error)
	Positions() []execution.Position
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates the ops server: health endpoints, metrics and read-only views of the core.
func NewServer(cfg ServerConfig, healthHandler *health.Handler, advisor Advisor, log *logger.Logger) *Server {
	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(cfg, healthHandler, advisor),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Infow("HTTP server configured", "port", port)
	return &Server{httpServer: httpServer, log: log}
}

// NewRouter builds the route table
func NewRouter(cfg ServerConfig, healthHandler *health.Handler, advisor Advisor) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/agents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, advisor.GetRegistrySnapshot())
	})
	mux.HandleFunc("/agents/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, advisor.HealthReport())
	})
	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if n <= 0 {
			n = 20
		}
		writeJSON(w, http.StatusOK, advisor.RecentRuns(n))
	})
	mux.HandleFunc("/runs/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/runs/"):]
		run, err := advisor.Run(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, advisor.Positions())
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})
	return mux
}

// Start begins listening for HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// writeError maps the error code onto an HTTP status
func writeError(w http.ResponseWriter, err error) {
	code := errors.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found":
		status = http.StatusNotFound
	case "invalid_input":
		status = http.StatusBadRequest
	case "unavailable", "timeout":
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
