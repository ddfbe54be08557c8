// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedEvent marks events rejected at the ingestion boundary.
var ErrMalformedEvent = errors.New("malformed login event")

// LoginEvent represents a single login observed at the edge.
// Immutable once created at the ingestion boundary.
type LoginEvent struct {
	UserID    string // subject identifier
	IP        string // dotted-quad source address
	Location  string // free text "City, Country"
	Timestamp int64  // unix seconds
}

// Validate rejects events with missing required fields before they reach
// the pipeline. Malformed IP octets are NOT an error here; feature
// extraction degrades them to zero.
func (e LoginEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.UserID) == "":
		return errors.Join(ErrMalformedEvent, errors.New("missing user_id"))
	case strings.TrimSpace(e.IP) == "":
		return errors.Join(ErrMalformedEvent, errors.New("missing ip"))
	case strings.TrimSpace(e.Location) == "":
		return errors.Join(ErrMalformedEvent, errors.New("missing location"))
	case e.Timestamp <= 0:
		return errors.Join(ErrMalformedEvent, errors.New("missing or invalid timestamp"))
	}
	return nil
}

// Time returns the event timestamp as time.Time.
func (e LoginEvent) Time() time.Time { return time.Unix(e.Timestamp, 0) }

// AnomalyScore is one point on a user's anomaly timeline.
type AnomalyScore struct {
	UserID    string  `json:"user_id"`
	Timestamp int64   `json:"timestamp"`
	Score     float64 `json:"score"`
}

// BehaviorEmbedding is a fixed-dimension unit-norm vector keyed by
// (user_id, timestamp), used for similarity search.
type BehaviorEmbedding struct {
	UserID    string    `json:"user_id"`
	Timestamp int64     `json:"timestamp"`
	Vector    []float32 `json:"vector"`
}

// Neighbor is one similarity search result.
type Neighbor struct {
	UserID    string  `json:"user_id"`
	Timestamp int64   `json:"timestamp"`
	Distance  float64 `json:"distance"`
}

// SecurityAlert is materialized at most once per ingested event and is
// read-only after persistence.
type SecurityAlert struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	IP            string            `json:"ip"`
	Location      string            `json:"location"`
	Timestamp     int64             `json:"timestamp"`
	Score         float64           `json:"score"`
	IsMaliciousIP bool              `json:"is_malicious_ip"`
	GeoJumpKM     float64           `json:"geo_jump_km"`
	EmbeddingKey  string            `json:"embedding_key"`
	Details       map[string]string `json:"details,omitempty"`
}

// NewAlertID returns an opaque unique alert token.
func NewAlertID() string { return uuid.NewString() }

// Assessment is the composite decision returned for one processed event.
type Assessment struct {
	StreamPosition string         `json:"stream_id"`
	Score          float64        `json:"anomaly_score"`
	IsAnomaly      bool           `json:"is_anomaly"`
	IsMaliciousIP  bool           `json:"is_malicious_ip"`
	GeoJumpKM      float64        `json:"geo_jump_km"`
	Features       []float64      `json:"features"`
	Embedding      []float32      `json:"embedding"`
	Alert          *SecurityAlert `json:"alert,omitempty"`
	SimilarEvents  []Neighbor     `json:"similar_events"`
}
