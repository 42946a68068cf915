package api

import (
	"net/http"
	"strings"

	"github.com/okian/patpat/internal/adapters/repository"
)

// DevicesHandler serves device status.
type DevicesHandler struct {
	store repository.Store
}

// NewDevicesHandler creates a new devices handler.
func NewDevicesHandler(store repository.Store) *DevicesHandler {
	return &DevicesHandler{store: store}
}

// HandleList handles GET /devices requests.
func (h *DevicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Devices)
}

// HandleGet handles GET /devices/{key} requests.
func (h *DevicesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/devices/"), "/")
	if key == "" || strings.Contains(key, "/") {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	dev, err := h.store.Device(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}
