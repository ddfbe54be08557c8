package api

import (
	"net/http"
)

// AdminHandler serves destructive administrative operations.
type AdminHandler struct {
	deps Dependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps Dependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type resetResponse struct {
	Status string `json:"status"`
}

// HandleReset handles POST /api/v1/admin/reset requests. The caller
// must pass confirm=true; anything else is rejected before any write.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "confirmation_required", ErrConfirmationMissing)
		return
	}
	if err := h.deps.Reset(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Status: "reset"})
}
