package api

import (
	"net/http"
	"strings"

	"github.com/okian/patpat/internal/adapters/repository"
	"github.com/okian/patpat/internal/domain/types"
	"github.com/okian/patpat/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the engine's Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store   repository.Store
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store repository.Store) *HealthHandler {
	return &HealthHandler{store: store, metrics: MetricsHandler()}
}

type healthResponse struct {
	Status           string `json:"status"`
	DevicesConnected int    `json:"devices_connected"`
	DevicesTotal     int    `json:"devices_total"`
	ReceiverActive   bool   `json:"receiver_active"`
	Transmission     bool   `json:"transmission_enabled"`
}

// HandleHealth handles GET /healthz requests.
// A client asking for application/json gets a liveness summary; everyone
// else gets Prometheus metrics.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept"), "application/json") {
		h.metrics.ServeHTTP(w, r)
		return
	}
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	connected := types.ConnectedCount(snap.Devices)
	status := "ok"
	if connected < len(snap.Devices) {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           status,
		DevicesConnected: connected,
		DevicesTotal:     len(snap.Devices),
		ReceiverActive:   snap.Stats.ReceiverActive,
		Transmission:     snap.Stats.TransmissionEnable,
	})
}
