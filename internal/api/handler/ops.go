// Package handler provides HTTP handlers for the SkyLoop API.
package handler

import (
	"net/http"
	"time"

	"github.com/skyloop/skyloop/internal/api/models"
	"github.com/skyloop/skyloop/internal/api/response"
	"github.com/skyloop/skyloop/internal/planner"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	planner   *planner.Planner
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, p *planner.Planner) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		planner:   p,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service
// is ready once a flight graph snapshot is loaded.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !h.planner.Ready() {
		health := models.Health{
			Status: models.HealthStatusFail,
			Time:   models.Timestamp(time.Now()),
			Details: map[string]interface{}{
				"reason": "flight graph not loaded",
			},
		}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - graph and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	graphStatus := models.GraphStatus{
		Ready:   h.planner.Ready(),
		Version: h.planner.GraphVersion(),
	}
	status := models.HealthStatusOK
	if !graphStatus.Ready {
		status = models.HealthStatusDegraded
	}
	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status: status,
		Time:   models.Timestamp(time.Now()),
		Graph:  graphStatus,
	})
}

// RefreshGraph handles POST /v1/ops/graph:refresh - rebuild the flight
// graph from the provider now.
func (h *OpsHandler) RefreshGraph(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.RefreshGraph(r.Context()); err != nil {
		response.ServiceUnavailable(w, r, "flight graph refresh failed")
		return
	}
	response.JSON(w, r, http.StatusOK, models.GraphStatus{
		Ready:   h.planner.Ready(),
		Version: h.planner.GraphVersion(),
	})
}
