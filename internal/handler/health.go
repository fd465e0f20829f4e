package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"invencea-api/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// Dependency is a backing service probed by the readiness and status checks.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	service string
	version string
	deps    []Dependency
}

// New creates a new handler.
func New(service, version string, deps ...Dependency) *Handler {
	return &Handler{service: service, version: version, deps: deps}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/health. It only proves the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// Check is the outcome of probing one dependency.
type Check struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Ready handles GET /api/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.probe(r.Context())

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, ReadyResponse{
		Ready:     ok,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// probe pings every dependency with a short deadline.
func (h *Handler) probe(ctx context.Context) ([]Check, bool) {
	checks := make([]Check, 0, len(h.deps))
	ok := true
	for _, dep := range h.deps {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		start := time.Now()
		err := dep.Ping(pctx)
		cancel()

		c := Check{Name: dep.Name, Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
		if err != nil {
			c.Status = "error"
			c.Error = err.Error()
			ok = false
		}
		checks = append(checks, c)
	}
	return checks, ok
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string  `json:"service"`
	Version       string  `json:"version"`
	Status        string  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryMB      float64 `json:"memory_mb"`
	Goroutines    int     `json:"goroutines"`
	Checks        []Check `json:"checks"`
}

// Status handles GET /api/status. Unlike Ready it always answers 200 and
// reports "degraded" when a dependency is down.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	checks, ok := h.probe(r.Context())
	status := "ok"
	if !ok {
		status = "degraded"
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, StatusResponse{
		Service:       h.service,
		Version:       h.version,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		MemoryMB:      float64(mem.Alloc/1024) / 1024,
		Goroutines:    runtime.NumGoroutine(),
		Checks:        checks,
	})
}
