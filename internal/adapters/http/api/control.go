package api

import (
	"math"
	"net/http"
)

// validIntensity matches the program.intensity range accepted at startup.
func validIntensity(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

// ControlHandler serves the engine-wide runtime toggles.
type ControlHandler struct {
	ctrl Controller
}

// NewControlHandler creates a new control handler.
func NewControlHandler(ctrl Controller) *ControlHandler {
	return &ControlHandler{ctrl: ctrl}
}

type transmissionBody struct {
	Enabled *bool `json:"enabled"`
}

type transmissionResponse struct {
	Enabled bool `json:"enabled"`
}

type intensityBody struct {
	Intensity *float64 `json:"intensity"`
}

type intensityResponse struct {
	Intensity float64 `json:"intensity"`
}

// HandleTransmission handles GET and PUT /transmission.
func (h *ControlHandler) HandleTransmission(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, transmissionResponse{Enabled: h.ctrl.Transmission()})
	case http.MethodPut:
		var req transmissionBody
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		h.ctrl.SetTransmission(r.Context(), *req.Enabled)
		writeJSON(w, http.StatusOK, transmissionResponse{Enabled: h.ctrl.Transmission()})
	default:
		methodNotAllowed(w, "GET, PUT")
	}
}

// HandleIntensity handles GET and PUT /intensity.
func (h *ControlHandler) HandleIntensity(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, intensityResponse{Intensity: h.ctrl.Intensity()})
	case http.MethodPut:
		var req intensityBody
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		if req.Intensity == nil || !validIntensity(*req.Intensity) {
			writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidIntensity)
			return
		}
		h.ctrl.SetIntensity(*req.Intensity)
		writeJSON(w, http.StatusOK, intensityResponse{Intensity: h.ctrl.Intensity()})
	default:
		methodNotAllowed(w, "GET, PUT")
	}
}
