package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

// SimilarHandler serves behavior similarity queries.
type SimilarHandler struct {
	deps Dependencies
}

// NewSimilarHandler creates a new similarity handler.
func NewSimilarHandler(deps Dependencies) *SimilarHandler {
	return &SimilarHandler{deps: deps}
}

type similarResponse struct {
	UserID    string           `json:"user_id"`
	Count     int              `json:"count"`
	Neighbors []model.Neighbor `json:"neighbors"`
}

// HandleSimilar handles GET /api/v1/users/{user_id}/similar-behavior.
func (h *SimilarHandler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	neighbors, err := h.deps.SimilarBehavior(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if neighbors == nil {
		neighbors = []model.Neighbor{}
	}
	writeJSON(w, http.StatusOK, similarResponse{
		UserID:    userID,
		Count:     len(neighbors),
		Neighbors: neighbors,
	})
}
