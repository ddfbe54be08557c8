package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

// loginRequest mirrors the ingestion schema. The timestamp accepts unix
// seconds or RFC3339 and defaults to now when absent.
type loginRequest struct {
	UserID    string          `json:"user_id"`
	IP        string          `json:"ip"`
	Location  string          `json:"location"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

func (r loginRequest) toEvent() (model.LoginEvent, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return model.LoginEvent{}, err
	}
	return model.LoginEvent{
		UserID:    r.UserID,
		IP:        r.IP,
		Location:  r.Location,
		Timestamp: ts,
	}, nil
}

func parseTimestamp(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Now().Unix(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("invalid timestamp; must be unix seconds or RFC3339")
}

// EventsHandler handles login event ingestion.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleLogin handles POST /api/v1/events/login requests.
func (h *EventsHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	event, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	assessment, err := h.deps.Ingest(r.Context(), event)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assessment)
}
