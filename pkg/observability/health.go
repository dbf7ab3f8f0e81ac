package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is anything that can report its own liveness. The database
// connection manager and the Redis cache both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingFunc adapts a function to Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// PingerFunc wraps fn as a Pinger.
func PingerFunc(fn func(ctx context.Context) error) Pinger { return pingFunc(fn) }

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker probes dependencies for readiness reporting.
type HealthChecker struct {
	required map[string]Pinger
	optional map[string]Pinger
}

// NewHealthChecker creates an empty checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		required: make(map[string]Pinger),
		optional: make(map[string]Pinger),
	}
}

// AddRequired registers a dependency whose failure makes the service
// unhealthy.
func (h *HealthChecker) AddRequired(name string, p Pinger) {
	h.required[name] = p
}

// AddOptional registers a dependency whose failure only degrades the
// service, such as the cache.
func (h *HealthChecker) AddOptional(name string, p Pinger) {
	h.optional[name] = p
}

// HealthStatus is the readiness report.
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the health of one dependency.
type DependencyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms"`
}

// Check probes every registered dependency.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Dependencies: make(map[string]DependencyStatus),
	}

	for name, p := range h.required {
		ds := probe(ctx, p)
		status.Dependencies[name] = ds
		if ds.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
	}
	for name, p := range h.optional {
		ds := probe(ctx, p)
		status.Dependencies[name] = ds
		if ds.Status == StatusUnhealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}
	return status
}

func probe(ctx context.Context, p Pinger) DependencyStatus {
	start := time.Now()
	err := p.Ping(ctx)
	ds := DependencyStatus{
		Status:  StatusHealthy,
		Latency: time.Since(start).Milliseconds(),
	}
	if err != nil {
		ds.Status = StatusUnhealthy
		ds.Message = err.Error()
	}
	return ds
}

// Liveness always reports healthy while the process runs.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now().UTC(),
	})
}

// Readiness reports the dependency probe results. Unhealthy maps to 503;
// degraded still serves traffic.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// RegisterHealthRoutes mounts the probes on mux. The short forms exist
// for kubelet probe configs that expect them.
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
}
