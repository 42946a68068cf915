package api

import (
	"fmt"
	"net/http"
	"strings"
)

// GroupsHandler serves contact group status and the per-group strength control.
type GroupsHandler struct {
	deps Dependencies
}

// NewGroupsHandler creates a new groups handler.
func NewGroupsHandler(deps Dependencies) *GroupsHandler {
	return &GroupsHandler{deps: deps}
}

type strengthRequest struct {
	Strength *int `json:"strength"`
}

type strengthResponse struct {
	Key      string `json:"key"`
	Strength int    `json:"strength"`
}

// HandleList handles GET /groups requests.
func (h *GroupsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, err := h.deps.Snapshot(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Groups)
}

// HandleGroup routes GET /groups/{key} and PUT /groups/{key}/strength.
func (h *GroupsHandler) HandleGroup(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/groups/"), "/")
	key, sub, _ := strings.Cut(rest, "/")
	if key == "" {
		writeError(w, http.StatusNotFound, "not_found", ErrMissingKey)
		return
	}
	switch sub {
	case "":
		h.handleGet(w, r, key)
	case "strength":
		h.handleStrength(w, r, key)
	default:
		writeError(w, http.StatusNotFound, "not_found", nil)
	}
}

func (h *GroupsHandler) handleGet(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	g, err := h.deps.Group(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupsHandler) handleStrength(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, http.MethodPut)
		return
	}
	var req strengthRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Strength == nil || *req.Strength < 0 || *req.Strength > 100 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidStrength)
		return
	}
	if err := h.deps.SetGroupStrength(r.Context(), key, *req.Strength); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", fmt.Errorf("set strength: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, strengthResponse{Key: key, Strength: *req.Strength})
}
