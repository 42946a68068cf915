package api

import (
	"net/http"

	"github.com/okian/patpat/internal/adapters/repository"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	store repository.Store
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store repository.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Stats)
}
