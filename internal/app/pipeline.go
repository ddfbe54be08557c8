// Package app wires the domain pipeline to the storage adapters and
// exposes the service operations.
package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ajitpdevops/rediguard/internal/adapters/store"
	"github.com/ajitpdevops/rediguard/internal/domain/anomaly"
	"github.com/ajitpdevops/rediguard/internal/domain/embedding"
	"github.com/ajitpdevops/rediguard/internal/domain/feature"
	"github.com/ajitpdevops/rediguard/internal/domain/geo"
	"github.com/ajitpdevops/rediguard/internal/domain/model"
	"github.com/ajitpdevops/rediguard/pkg/logger"
	"github.com/ajitpdevops/rediguard/pkg/metrics"
)

// Pipeline runs the per-event analysis: features, anomaly score,
// embedding, reputation, geo jump, conditional alert, timeline append,
// similarity neighbors.
type Pipeline struct {
	extractor *feature.Extractor
	scorer    *anomaly.Scorer
	generator *embedding.Generator

	stream     *store.EventStream
	reputation store.ReputationStore
	timeseries store.TimeSeriesStore
	similarity store.SimilarityIndex
	alerts     store.AlertStore
	userState  *store.UserStateStore

	anomalyThreshold   float64
	geoJumpThresholdKM float64
	similarLimit       int

	log logger.Logger

	// locMu serializes the per-user last-location read-modify-write so
	// concurrent workers observe a consistent jump sequence.
	locMu sync.Mutex
}

// PipelineDeps carries everything a Pipeline needs.
type PipelineDeps struct {
	Scorer     *anomaly.Scorer
	Generator  *embedding.Generator
	Stream     *store.EventStream
	Reputation store.ReputationStore
	TimeSeries store.TimeSeriesStore
	Similarity store.SimilarityIndex
	Alerts     store.AlertStore
	UserState  *store.UserStateStore

	AnomalyThreshold   float64
	GeoJumpThresholdKM float64
	SimilarLimit       int
}

// NewPipeline builds the coordinator.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		extractor:          feature.NewExtractor(),
		scorer:             deps.Scorer,
		generator:          deps.Generator,
		stream:             deps.Stream,
		reputation:         deps.Reputation,
		timeseries:         deps.TimeSeries,
		similarity:         deps.Similarity,
		alerts:             deps.Alerts,
		userState:          deps.UserState,
		anomalyThreshold:   deps.AnomalyThreshold,
		geoJumpThresholdKM: deps.GeoJumpThresholdKM,
		similarLimit:       deps.SimilarLimit,
		log:                logger.Named("pipeline"),
	}
}

// Process appends the event to the stream and analyzes it. The append
// failing is fatal; nothing else is.
func (p *Pipeline) Process(ctx context.Context, e model.LoginEvent) (*model.Assessment, error) {
	pos, err := p.stream.Append(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	return p.Analyze(ctx, pos, e), nil
}

// Analyze runs the analysis for an event already on the stream. It
// always returns an assessment: per-store write failures are logged
// and masked, scorer failures yield the neutral score.
func (p *Pipeline) Analyze(ctx context.Context, position string, e model.LoginEvent) *model.Assessment {
	started := time.Now()

	history := p.history(ctx, e.UserID)
	features := p.extractor.Extract(e, history)

	scoreStart := time.Now()
	score := p.scorer.Score(features)
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1000.0)

	isAnomaly := score > p.anomalyThreshold
	if isAnomaly {
		metrics.RecordAnomalyDetected()
	}

	emb := p.generator.Embed(features)
	embKey, err := p.similarity.Put(ctx, e.UserID, e.Timestamp, emb)
	if err != nil {
		p.maskWrite(ctx, "similarity", e.UserID, err)
	}

	malicious := p.checkReputation(ctx, e.IP)
	if malicious {
		metrics.RecordMaliciousIPHit()
	}

	jumpKM := p.geoJump(ctx, e)

	a := &model.Assessment{
		StreamPosition: position,
		Score:          score,
		IsAnomaly:      isAnomaly,
		IsMaliciousIP:  malicious,
		GeoJumpKM:      jumpKM,
		Features:       features,
		Embedding:      emb,
	}

	if isAnomaly || malicious || jumpKM >= p.geoJumpThresholdKM {
		a.Alert = p.raiseAlert(ctx, e, score, malicious, jumpKM, embKey)
	}

	if err := p.timeseries.Append(ctx, e.UserID, e.Timestamp, score); err != nil {
		p.maskWrite(ctx, "timeseries", e.UserID, err)
	}
	if err := p.userState.Observe(ctx, e); err != nil {
		p.maskWrite(ctx, "userstate", e.UserID, err)
	}

	neighbors, err := p.similarity.Nearest(ctx, emb, p.similarLimit)
	if err != nil {
		p.log.Warn(ctx, "similarity query failed", logger.String("user_id", e.UserID), logger.Error(err))
	}
	a.SimilarEvents = neighbors

	metrics.RecordEventProcessed()
	metrics.RecordPipelineLatency(float64(time.Since(started).Microseconds()) / 1000.0)
	return a
}

// history loads the user's aggregate slots; failures degrade to nil.
func (p *Pipeline) history(ctx context.Context, userID string) *feature.History {
	h, err := p.userState.History(ctx, userID)
	if err != nil {
		p.log.Debug(ctx, "history unavailable", logger.String("user_id", userID), logger.Error(err))
		return nil
	}
	return h
}

// checkReputation treats lookup failures as not-malicious.
func (p *Pipeline) checkReputation(ctx context.Context, ip string) bool {
	hit, err := p.reputation.Contains(ctx, ip)
	if err != nil {
		p.log.Warn(ctx, "reputation check failed", logger.String("ip", ip), logger.Error(err))
		return false
	}
	return hit
}

// geoJump computes the distance from the user's previous location and
// advances the stored location, serialized per process.
func (p *Pipeline) geoJump(ctx context.Context, e model.LoginEvent) float64 {
	p.locMu.Lock()
	defer p.locMu.Unlock()

	prev, err := p.userState.LastLocation(ctx, e.UserID)
	if err != nil {
		p.log.Warn(ctx, "last location unavailable", logger.String("user_id", e.UserID), logger.Error(err))
		return 0
	}
	if err := p.userState.SetLastLocation(ctx, e.UserID, e.Location); err != nil {
		p.maskWrite(ctx, "userstate", e.UserID, err)
	}
	if prev == "" {
		return 0
	}
	return geo.Distance(prev, e.Location)
}

func (p *Pipeline) raiseAlert(ctx context.Context, e model.LoginEvent, score float64, malicious bool, jumpKM float64, embKey string) *model.SecurityAlert {
	details := map[string]string{}
	if score > p.anomalyThreshold {
		details["anomaly"] = strconv.FormatFloat(score, 'f', 4, 64)
	}
	if malicious {
		details["malicious_ip"] = e.IP
	}
	if jumpKM >= p.geoJumpThresholdKM {
		details["geo_jump_km"] = strconv.FormatFloat(jumpKM, 'f', 1, 64)
	}

	alert := &model.SecurityAlert{
		ID:            model.NewAlertID(),
		UserID:        e.UserID,
		IP:            e.IP,
		Location:      e.Location,
		Timestamp:     e.Timestamp,
		Score:         score,
		IsMaliciousIP: malicious,
		GeoJumpKM:     jumpKM,
		EmbeddingKey:  embKey,
		Details:       details,
	}
	if err := p.alerts.Put(ctx, alert); err != nil {
		p.maskWrite(ctx, "alerts", alert.ID, err)
		return alert
	}
	metrics.RecordAlertCreated()
	p.log.Info(ctx, "security alert raised",
		logger.String("alert_id", alert.ID),
		logger.String("user_id", e.UserID),
		logger.Float64("score", score),
		logger.Bool("malicious_ip", malicious),
		logger.Float64("geo_jump_km", jumpKM),
	)
	return alert
}

// maskWrite logs a post-decision write failure without failing the call.
func (p *Pipeline) maskWrite(ctx context.Context, storeName, key string, err error) {
	metrics.RecordPartialWrite(storeName)
	p.log.Error(ctx, "post-decision write failed",
		logger.String("store", storeName),
		logger.String("key", key),
		logger.Error(err),
	)
}
