package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"quorum/pkg/logger"
)

// Check verifies one dependency.
type Check func(ctx context.Context) error

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Check
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. Every check is run by /ready and /health.
func New(log *logger.Logger, serviceName, version string, checks map[string]Check) *Handler {
	cp := make(map[string]Check, len(checks))
	for name, c := range checks {
		if c != nil {
			cp[name] = c
		}
	}
	return &Handler{
		log:         log,
		checks:      cp,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness fails unless every check passes
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, healthy := h.run(ctx)
	code := http.StatusOK
	if healthy < len(status.Checks) {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}
	writeJSON(w, code, status)
}

// HandleHealth returns detailed status. Partial failure is reported as degraded with 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, healthy := h.run(ctx)
	code := http.StatusOK
	switch {
	case len(status.Checks) > 0 && healthy == 0:
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case healthy < len(status.Checks):
		status.Status = "degraded"
	}
	writeJSON(w, code, status)
}

func (h *Handler) run(ctx context.Context) (HealthStatus, int) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]ComponentHealth, len(names)),
	}

	healthy := 0
	for _, name := range names {
		start := time.Now()
		err := h.checks[name](ctx)
		c := ComponentHealth{Status: "healthy", ResponseTime: time.Since(start).String()}
		if err != nil {
			c.Status = "unhealthy"
			c.Error = err.Error()
			h.log.Debugw("Health check failed", "check", name, "error", err)
		} else {
			healthy++
		}
		status.Checks[name] = c
	}
	return status, healthy
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
