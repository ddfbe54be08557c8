package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ReputationHandler serves IP reputation checks and additions.
type ReputationHandler struct {
	deps Dependencies
}

// NewReputationHandler creates a new reputation handler.
func NewReputationHandler(deps Dependencies) *ReputationHandler {
	return &ReputationHandler{deps: deps}
}

type reputationResponse struct {
	IP        string `json:"ip"`
	Malicious bool   `json:"malicious"`
}

// HandleCheck handles GET /api/v1/ip/{ip}/reputation requests.
func (h *ReputationHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	hit, err := h.deps.CheckIP(r.Context(), ip)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reputationResponse{IP: ip, Malicious: hit})
}

type addIPRequest struct {
	IP string `json:"ip"`
}

type addIPResponse struct {
	IP    string `json:"ip"`
	Added bool   `json:"added"`
}

// HandleAdd handles POST /api/v1/security/add-malicious-ip requests.
// Added is false when the address was already on the list.
func (h *ReputationHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.IP) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing ip", ErrBadRequest))
		return
	}
	added, err := h.deps.AddMaliciousIP(r.Context(), req.IP)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addIPResponse{IP: req.IP, Added: added})
}
