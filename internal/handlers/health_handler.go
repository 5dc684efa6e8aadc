package handlers

import (
	"net/http"

	"device-tracker/internal/health"
	"device-tracker/internal/monitoring"
	"device-tracker/pkg/utils"
)

type HealthHandler struct {
	checker *health.HealthChecker
	stats   *monitoring.StatsCollector
}

func NewHealthHandler(checker *health.HealthChecker, stats *monitoring.StatsCollector) *HealthHandler {
	return &HealthHandler{checker: checker, stats: stats}
}

// BasicHealth - for Kubernetes liveness checks
func (h *HealthHandler) BasicHealth(w http.ResponseWriter, r *http.Request) {
	utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadinessHealth - for Kubernetes readiness checks
func (h *HealthHandler) ReadinessHealth(w http.ResponseWriter, r *http.Request) {
	status := h.checker.CheckBasic()
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	utils.JSON(w, code, status)
}

// DetailedHealth - component status plus host and pool numbers
func (h *HealthHandler) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"health": h.checker.CheckBasic()}
	if h.stats != nil {
		resp["stats"] = h.stats.Collect(r.Context())
	}
	utils.JSON(w, http.StatusOK, resp)
}
