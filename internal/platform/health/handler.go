// Package health provides HTTP health check endpoints for liveness, readiness, and status probes.
package health

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports the health of a dependency. Nil means healthy.
type CheckFunc func() error

// GaugeFunc reads a runtime counter for the status endpoint, such as
// the number of partners with live event streams.
type GaugeFunc func() int64

// Handler provides health check endpoints.
type Handler struct {
	startTime   time.Time
	environment string

	mu     sync.RWMutex
	checks map[string]CheckFunc
	gauges map[string]GaugeFunc
}

// New creates a new health handler.
func New(environment string) *Handler {
	return &Handler{
		startTime:   time.Now(),
		environment: environment,
		checks:      make(map[string]CheckFunc),
		gauges:      make(map[string]GaugeFunc),
	}
}

// RegisterCheck adds a named dependency check for the readiness probe.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RegisterGauge adds a named runtime counter reported by the status endpoint.
func (h *Handler) RegisterGauge(name string, gauge GaugeFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gauges[name] = gauge
}

// Register mounts health check routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// LivenessResponse is the response for the liveness probe.
type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness returns 200 OK whenever the process is serving requests.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{
		Status: "alive",
	})
}

// CheckResult is the outcome of a single readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// ReadinessResponse is the response for the readiness probe.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// HandleReadiness runs every registered check and returns 503 if any fail.
func (h *Handler) HandleReadiness(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	maps.Copy(checks, h.checks)
	h.mu.RUnlock()

	response := ReadinessResponse{
		Status: "ready",
		Checks: make(map[string]CheckResult),
	}

	ready := true
	for name, check := range checks {
		started := time.Now()
		err := check()
		result := CheckResult{
			Status:    "up",
			LatencyMs: time.Since(started).Milliseconds(),
		}
		if err != nil {
			result.Status = "down"
			result.Error = err.Error()
			ready = false
		}
		response.Checks[name] = result
	}

	if !ready {
		response.Status = "not_ready"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}

// StatusResponse is the response for the general health status endpoint.
type StatusResponse struct {
	Status        string           `json:"status"`
	Version       string           `json:"version"`
	Environment   string           `json:"environment"`
	UptimeSeconds int64            `json:"uptimeSeconds"`
	Timestamp     string           `json:"timestamp"`
	Gauges        map[string]int64 `json:"gauges,omitempty"`
}

// HandleStatus returns version, uptime, and current runtime gauge readings.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	gauges := make(map[string]GaugeFunc, len(h.gauges))
	maps.Copy(gauges, h.gauges)
	h.mu.RUnlock()

	response := StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if len(gauges) > 0 {
		response.Gauges = make(map[string]int64, len(gauges))
		for name, gauge := range gauges {
			response.Gauges[name] = gauge()
		}
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}
