package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/carmarket/internal/health"
	"github.com/onnwee/carmarket/internal/middleware"
)

// readyTimeout bounds one readiness probe across all checkers.
const readyTimeout = 5 * time.Second

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	checkers []health.Checker
	logger   *slog.Logger
	now      func() time.Time
}

// NewHealthHandlers creates health handlers that verify checkers on /ready.
// With no checkers (all in-memory backends) the service is always ready.
func NewHealthHandlers(logger *slog.Logger, checkers ...health.Checker) *HealthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandlers{
		checkers: checkers,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// Returns 200 whenever the process can serve requests.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: h.now().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe).
// Returns 503 when any configured backend fails its check.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	report := health.Run(r.Context(), readyTimeout, h.logger, h.checkers...)
	report.Checks["metrics"] = "ok"

	status, code := "healthy", http.StatusOK
	ctx := r.Context()
	if !report.Healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnavailable)
		middleware.UpdateResponseContext(w, ctx)
	}
	WriteJSON(w, ctx, code, HealthResponse{
		Status:    status,
		Checks:    report.Checks,
		Timestamp: h.now().Format(time.RFC3339),
	})
}
