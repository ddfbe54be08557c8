package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ajitpdevops/rediguard/internal/adapters/store"
)

// HistoryHandler serves per-user anomaly score timelines.
type HistoryHandler struct {
	deps Dependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps Dependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

type historyResponse struct {
	UserID  string         `json:"user_id"`
	Hours   int            `json:"hours"`
	Count   int            `json:"count"`
	Samples []store.Sample `json:"samples"`
}

// HandleHistory handles GET /api/v1/users/{user_id}/anomaly-history.
func (h *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid hours %q", raw))
			return
		}
		hours = n
	}

	samples, err := h.deps.AnomalyHistory(r.Context(), userID, hours)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if samples == nil {
		samples = []store.Sample{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		UserID:  userID,
		Hours:   hours,
		Count:   len(samples),
		Samples: samples,
	})
}
