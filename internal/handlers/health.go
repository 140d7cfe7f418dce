package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/services"
)

// HealthHandlers exposes liveness and readiness probes.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers wires the probe endpoints to the system service.
func NewHealthHandlers(system services.SystemService) (*HealthHandlers, error) {
	if system == nil {
		return nil, errors.New("health handlers: system service is required")
	}
	return &HealthHandlers{system: system}, nil
}

// Routes registers the probe endpoints on the router.
func (h *HealthHandlers) Routes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
}

type healthCheckResponse struct {
	Status    string  `json:"status"`
	Detail    string  `json:"detail,omitempty"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latencyMs"`
}

type healthReportResponse struct {
	Status      string                         `json:"status"`
	GeneratedAt time.Time                      `json:"generatedAt"`
	Checks      map[string]healthCheckResponse `json:"checks,omitempty"`
}

func (h *HealthHandlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandlers) readyz(w http.ResponseWriter, r *http.Request) {
	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthReportResponse{Status: string(domain.HealthStatusError)})
		return
	}

	checks := make(map[string]healthCheckResponse, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = healthCheckResponse{
			Status:    string(check.Status),
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: float64(check.Latency.Microseconds()) / 1000,
		}
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, healthReportResponse{
		Status:      string(report.Status),
		GeneratedAt: report.GeneratedAt,
		Checks:      checks,
	})
}
