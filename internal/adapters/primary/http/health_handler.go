package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/juju/clock"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"

	defaultProbeTimeout = 5 * time.Second
)

// Pinger is anything the relay depends on that can answer a cheap probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports how many viewers are attached.
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthConfig wires the health endpoints. Clock defaults to the wall clock.
type HealthConfig struct {
	Upstream     Pinger
	Stream       ConnectionCounter
	Version      string
	ProbeTimeout time.Duration
	Clock        clock.Clock
}

// HealthHandler serves the liveness, readiness and detail endpoints.
type HealthHandler struct {
	upstream Pinger
	stream   ConnectionCounter
	version  string
	timeout  time.Duration
	clock    clock.Clock
	started  time.Time
}

func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthHandler{
		upstream: cfg.Upstream,
		stream:   cfg.Stream,
		version:  cfg.Version,
		timeout:  timeout,
		clock:    clk,
		started:  clk.Now(),
	}
}

// HealthResponse is the body shared by all three endpoints.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check is the outcome of one dependency probe.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// RuntimeStats is attached to the detail endpoint only.
type RuntimeStats struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
	Connections    int    `json:"connections"`
}

// DetailedHealthResponse adds process and stream figures to HealthResponse.
type DetailedHealthResponse struct {
	HealthResponse
	Runtime RuntimeStats `json:"runtime"`
}

// HandleLiveness answers as long as the process can serve HTTP. It never
// touches the tracker, so a tracker outage does not get the relay restarted.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Timestamp: h.timestamp(),
	})
}

// HandleReadiness reports whether the tracker is reachable. Proxy calls
// would fail otherwise, so the relay should not receive traffic.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.probe(r.Context())

	status := http.StatusOK
	if resp.Status != statusHealthy {
		resp.Status = statusUnhealthy
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}

// HandleHealth reports the readiness checks plus runtime and stream figures.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := DetailedHealthResponse{HealthResponse: h.probe(r.Context())}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Runtime = RuntimeStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
	}
	if h.stream != nil {
		resp.Runtime.Connections = h.stream.ConnectionCount()
	}

	status := http.StatusOK
	if resp.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}

func (h *HealthHandler) probe(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	upstream := h.pingUpstream(ctx)
	overall := statusHealthy
	if upstream.Status != statusHealthy {
		overall = statusDegraded
	}

	return HealthResponse{
		Status:    overall,
		Timestamp: h.timestamp(),
		Version:   h.version,
		Uptime:    h.clock.Now().Sub(h.started).Round(time.Second).String(),
		Checks:    map[string]Check{"upstream": upstream},
	}
}

func (h *HealthHandler) pingUpstream(ctx context.Context) Check {
	if h.upstream == nil {
		return Check{Status: statusUnhealthy, Message: "Upstream not configured"}
	}

	start := h.clock.Now()
	err := h.upstream.Ping(ctx)
	latency := h.clock.Now().Sub(start).String()

	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency}
	}
	return Check{Status: statusHealthy, Latency: latency}
}

func (h *HealthHandler) timestamp() string {
	return h.clock.Now().UTC().Format(time.RFC3339)
}

// RegisterRoutes mounts the health endpoints.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}
