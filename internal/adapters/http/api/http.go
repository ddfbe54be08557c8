// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ajitpdevops/rediguard/internal/adapters/store"
	"github.com/ajitpdevops/rediguard/internal/app"
	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Ingest(ctx context.Context, e model.LoginEvent) (*model.Assessment, error)
	SearchAlerts(ctx context.Context, f store.AlertFilter) ([]*model.SecurityAlert, error)
	GetAlert(ctx context.Context, id string) (*model.SecurityAlert, error)
	AnomalyHistory(ctx context.Context, userID string, hours int) ([]store.Sample, error)
	CheckIP(ctx context.Context, ip string) (bool, error)
	AddMaliciousIP(ctx context.Context, ip string) (bool, error)
	SimilarBehavior(ctx context.Context, userID string, limit int) ([]model.Neighbor, error)
	Reset(ctx context.Context) error
	Health(ctx context.Context) app.HealthStatus
}

// Server wires HTTP routes for the business API.
type Server struct {
	eventsHandler     *EventsHandler
	alertsHandler     *AlertsHandler
	historyHandler    *HistoryHandler
	reputationHandler *ReputationHandler
	similarHandler    *SimilarHandler
	adminHandler      *AdminHandler
	healthHandler     *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		eventsHandler:     NewEventsHandler(deps),
		alertsHandler:     NewAlertsHandler(deps),
		historyHandler:    NewHistoryHandler(deps),
		reputationHandler: NewReputationHandler(deps),
		similarHandler:    NewSimilarHandler(deps),
		adminHandler:      NewAdminHandler(deps),
		healthHandler:     NewHealthHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/events/login", MetricsMiddleware(s.eventsHandler.HandleLogin, "events_login"))
	mux.HandleFunc("GET /api/v1/alerts/search", MetricsMiddleware(s.alertsHandler.HandleSearch, "alerts_search"))
	mux.HandleFunc("GET /api/v1/alerts/{id}", MetricsMiddleware(s.alertsHandler.HandleGet, "alerts_get"))
	mux.HandleFunc("GET /api/v1/users/{user_id}/anomaly-history", MetricsMiddleware(s.historyHandler.HandleHistory, "anomaly_history"))
	mux.HandleFunc("GET /api/v1/users/{user_id}/similar-behavior", MetricsMiddleware(s.similarHandler.HandleSimilar, "similar_behavior"))
	mux.HandleFunc("GET /api/v1/ip/{ip}/reputation", MetricsMiddleware(s.reputationHandler.HandleCheck, "ip_reputation"))
	mux.HandleFunc("POST /api/v1/security/add-malicious-ip", MetricsMiddleware(s.reputationHandler.HandleAdd, "add_malicious_ip"))
	mux.HandleFunc("POST /api/v1/admin/reset", MetricsMiddleware(s.adminHandler.HandleReset, "admin_reset"))
	mux.HandleFunc("GET /api/v1/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.Handle("GET /healthz", s.healthHandler.Metrics())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMalformedEvent):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, store.ErrConnectivity):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
