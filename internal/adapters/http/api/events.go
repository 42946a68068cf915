package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/patpat/internal/adapters/repository"
)

const defaultEventsLimit = 50

// EventsHandler serves recent state-change events.
type EventsHandler struct {
	store repository.Store
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(store repository.Store) *EventsHandler {
	return &EventsHandler{store: store}
}

// HandleList handles GET /events?limit=N. Events are returned newest first.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	limit := defaultEventsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit %q", ErrBadRequest, s))
			return
		}
		limit = n
	}
	events, err := h.store.Events(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
