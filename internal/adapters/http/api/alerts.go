package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ajitpdevops/rediguard/internal/adapters/store"
	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

// AlertsHandler serves alert queries.
type AlertsHandler struct {
	deps Dependencies
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(deps Dependencies) *AlertsHandler {
	return &AlertsHandler{deps: deps}
}

type alertSearchResponse struct {
	Query  map[string]string      `json:"query"`
	Count  int                    `json:"count"`
	Alerts []*model.SecurityAlert `json:"alerts"`
}

// HandleSearch handles GET /api/v1/alerts/search requests.
func (h *AlertsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	alerts, err := h.deps.SearchAlerts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*model.SecurityAlert{}
	}
	writeJSON(w, http.StatusOK, alertSearchResponse{
		Query:  echoQuery(r.URL.Query()),
		Count:  len(alerts),
		Alerts: alerts,
	})
}

// HandleGet handles GET /api/v1/alerts/{id} requests.
func (h *AlertsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	alert, err := h.deps.GetAlert(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func parseAlertFilter(q url.Values) (store.AlertFilter, error) {
	var f store.AlertFilter
	var err error

	if f.MinScore, err = floatParam(q, "min_score"); err != nil {
		return f, err
	}
	if f.MaxScore, err = floatParam(q, "max_score"); err != nil {
		return f, err
	}
	if f.Start, err = intParam(q, "start"); err != nil {
		return f, err
	}
	if f.End, err = intParam(q, "end"); err != nil {
		return f, err
	}
	f.UserID = q.Get("user_id")
	f.IP = q.Get("ip")
	f.LocationContains = q.Get("location")
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = n
	}
	return f, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}

func intParam(q url.Values, name string) (*int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}

func echoQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k := range q {
		out[k] = q.Get(k)
	}
	return out
}
