// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/patpat/internal/adapters/repository"
)

// maxBodyBytes bounds request bodies; every accepted body is a tiny JSON object.
const maxBodyBytes = 4 << 10

// Controller exposes the runtime controls of the engine.
type Controller interface {
	// Transmission reports whether device flushing is enabled.
	Transmission() bool
	// SetTransmission toggles device flushing.
	SetTransmission(ctx context.Context, enabled bool)

	// Intensity returns the master intensity multiplier.
	Intensity() float64
	// SetIntensity sets the master intensity multiplier.
	SetIntensity(f float64)

	// SetGroupStrength sets a group's strength in percent. Returns an error
	// wrapping repository.ErrNotFound for an unknown group.
	SetGroupStrength(ctx context.Context, key string, pct int) error
}

// Dependencies required by HTTP handlers. Reads go through the published
// status snapshot; writes go through the controller.
type Dependencies interface {
	repository.Store
	Controller
}

// Server wires HTTP routes for the engine API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	devicesHandler *DevicesHandler
	groupsHandler  *GroupsHandler
	controlHandler *ControlHandler
	eventsHandler  *EventsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(deps),
		devicesHandler: NewDevicesHandler(deps),
		groupsHandler:  NewGroupsHandler(deps),
		controlHandler: NewControlHandler(deps),
		eventsHandler:  NewEventsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/devices", MetricsMiddleware(s.devicesHandler.HandleList, "devices"))
	mux.HandleFunc("/devices/", MetricsMiddleware(s.devicesHandler.HandleGet, "device"))
	mux.HandleFunc("/groups", MetricsMiddleware(s.groupsHandler.HandleList, "groups"))
	mux.HandleFunc("/groups/", MetricsMiddleware(s.groupsHandler.HandleGroup, "group"))
	mux.HandleFunc("/transmission", MetricsMiddleware(s.controlHandler.HandleTransmission, "transmission"))
	mux.HandleFunc("/intensity", MetricsMiddleware(s.controlHandler.HandleIntensity, "intensity"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandleList, "events"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeStoreError maps read model errors onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

// decodeBody reads a single JSON object into v. Unknown fields are rejected.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
