package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajitpdevops/rediguard/pkg/metrics"
)

// HealthHandler serves the health report and the metrics endpoint.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /api/v1/health requests. Degraded storage
// answers 503 with the same report shape.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.deps.Health(r.Context())
	code := http.StatusOK
	if !status.RedisOK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Metrics serves the Prometheus registry.
func (h *HealthHandler) Metrics() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
