package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// durabilityReporter is implemented by stores that can say whether they
// persist data.
type durabilityReporter interface {
	Durable() bool
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	storage HealthChecker
	cache   HealthChecker
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for cache when no Redis is configured.
func NewHealthHandler(storage, cache HealthChecker) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		cache:   cache,
		timeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe. It performs no dependency checks.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe. It returns 200 only when the store and, if
// configured, Redis respond. A volatile store is ready but reported as such.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, 2)
	healthy := true

	switch {
	case h.storage == nil:
		checks["storage"] = "not configured"
		healthy = false
	default:
		if err := h.storage.Ping(ctx); err != nil {
			checks["storage"] = "error: " + err.Error()
			healthy = false
		} else if d, ok := h.storage.(durabilityReporter); ok && !d.Durable() {
			checks["storage"] = "ok (volatile)"
		} else {
			checks["storage"] = "ok"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}
