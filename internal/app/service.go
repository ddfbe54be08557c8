package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ajitpdevops/rediguard/internal/adapters/store"
	"github.com/ajitpdevops/rediguard/internal/config"
	"github.com/ajitpdevops/rediguard/internal/domain/anomaly"
	"github.com/ajitpdevops/rediguard/internal/domain/embedding"
	"github.com/ajitpdevops/rediguard/internal/domain/model"
	"github.com/ajitpdevops/rediguard/pkg/logger"
)

// Service owns the storage layer and the analysis pipeline and exposes
// the operations the transports call.
type Service struct {
	cfg *config.Config
	log logger.Logger

	client     *store.Client
	stream     *store.EventStream
	reputation store.ReputationStore
	timeseries store.TimeSeriesStore
	similarity store.SimilarityIndex
	alerts     store.AlertStore
	userState  *store.UserStateStore

	scorer   *anomaly.Scorer
	pipeline *Pipeline
}

// NewService connects to storage, selects store backends from the
// probed capabilities, prepares derived structures, and restores a
// persisted anomaly model when one exists.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	client, err := store.New(ctx,
		store.WithAddr(cfg.RedisAddr),
		store.WithPassword(cfg.RedisPassword),
		store.WithDB(cfg.RedisDB),
	)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:    cfg,
		log:    logger.Named("service"),
		client: client,
		stream: store.NewEventStream(client, store.StreamConfig{
			Stream: cfg.StreamName,
			Group:  cfg.ConsumerGroup,
			MaxLen: cfg.StreamMaxLen,
		}),
		reputation: store.NewReputationStore(client, store.ReputationConfig{
			ErrorRate: cfg.BloomErrorRate,
			Capacity:  cfg.BloomCapacity,
		}),
		timeseries: store.NewTimeSeriesStore(client, time.Duration(cfg.RetentionHours)*time.Hour),
		similarity: store.NewSimilarityIndex(client, cfg.VectorDimension),
		alerts:     store.NewAlertStore(client, cfg.MaxSearchLimit),
		userState:  store.NewUserStateStore(client),
		scorer:     anomaly.NewScorer(),
	}

	if err := s.ensureStructures(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	s.loadModel(ctx)

	s.pipeline = NewPipeline(PipelineDeps{
		Scorer:             s.scorer,
		Generator:          embedding.NewGenerator(embedding.WithDimension(cfg.VectorDimension)),
		Stream:             s.stream,
		Reputation:         s.reputation,
		TimeSeries:         s.timeseries,
		Similarity:         s.similarity,
		Alerts:             s.alerts,
		UserState:          s.userState,
		AnomalyThreshold:   cfg.AnomalyThreshold,
		GeoJumpThresholdKM: cfg.GeoJumpThresholdKM,
		SimilarLimit:       cfg.SimilarLimit,
	})
	return s, nil
}

// ensureStructures creates the consumer group, reputation filter and
// search indexes; all idempotent.
func (s *Service) ensureStructures(ctx context.Context) error {
	if err := s.stream.EnsureGroup(ctx); err != nil {
		return err
	}
	if err := s.reputation.Ensure(ctx); err != nil {
		return err
	}
	if err := s.similarity.Ensure(ctx); err != nil {
		return err
	}
	return s.alerts.Ensure(ctx)
}

// Pipeline exposes the analysis coordinator to stream consumers.
func (s *Service) Pipeline() *Pipeline { return s.pipeline }

// Stream exposes the event stream to stream consumers.
func (s *Service) Stream() *store.EventStream { return s.stream }

// Ingest validates and runs one login event through the full pipeline.
func (s *Service) Ingest(ctx context.Context, e model.LoginEvent) (*model.Assessment, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return s.pipeline.Process(ctx, e)
}

// SearchAlerts returns alerts matching the filter, newest first.
func (s *Service) SearchAlerts(ctx context.Context, f store.AlertFilter) ([]*model.SecurityAlert, error) {
	return s.alerts.Search(ctx, f)
}

// GetAlert loads one alert by ID.
func (s *Service) GetAlert(ctx context.Context, id string) (*model.SecurityAlert, error) {
	return s.alerts.Get(ctx, id)
}

// AnomalyHistory returns the user's anomaly score timeline for the last
// N hours, capped by the retention window.
func (s *Service) AnomalyHistory(ctx context.Context, userID string, hours int) ([]store.Sample, error) {
	if hours <= 0 || hours > s.cfg.RetentionHours {
		hours = s.cfg.RetentionHours
	}
	now := time.Now().Unix()
	return s.timeseries.Range(ctx, userID, now-int64(hours)*3600, now)
}

// CheckIP answers whether the address is in the reputation set.
func (s *Service) CheckIP(ctx context.Context, ip string) (bool, error) {
	return s.reputation.Contains(ctx, ip)
}

// AddMaliciousIP records a known-bad address and reports whether it was
// newly added.
func (s *Service) AddMaliciousIP(ctx context.Context, ip string) (bool, error) {
	return s.reputation.Add(ctx, ip)
}

// SimilarBehavior finds the nearest neighbors of the user's most recent
// behavior embedding. ErrNotFound when the user has no embeddings yet.
func (s *Service) SimilarBehavior(ctx context.Context, userID string, limit int) ([]model.Neighbor, error) {
	if limit <= 0 {
		limit = s.cfg.SimilarLimit
	}
	vec, err := s.similarity.LatestFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.similarity.Nearest(ctx, vec, limit)
}

// Reset wipes all persisted state and re-creates derived structures.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.client.Reset(ctx); err != nil {
		return err
	}
	s.log.Warn(ctx, "all persisted state cleared")
	return s.ensureStructures(ctx)
}

// HealthStatus is the composite health report.
type HealthStatus struct {
	RedisOK       bool               `json:"redis_ok"`
	Capabilities  store.Capabilities `json:"capabilities"`
	StreamLength  int64              `json:"stream_length"`
	PendingEvents int64              `json:"pending_events"`
	ModelTrained  bool               `json:"model_trained"`
}

// Health reports connectivity, capability mode, and stream depth.
func (s *Service) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{
		Capabilities: s.client.Capabilities(),
		ModelTrained: s.scorer.Trained(),
	}
	if err := s.client.Ping(ctx); err != nil {
		return h
	}
	h.RedisOK = true
	h.StreamLength, _ = s.stream.Len(ctx)
	h.PendingEvents, _ = s.stream.Pending(ctx)
	return h
}

// loadModel restores a persisted anomaly model; absence is not an error.
func (s *Service) loadModel(ctx context.Context) {
	if s.cfg.ModelPath == "" {
		return
	}
	f, err := os.Open(s.cfg.ModelPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn(ctx, "model file unreadable", logger.String("path", s.cfg.ModelPath), logger.Error(err))
		}
		return
	}
	defer f.Close()
	if err := s.scorer.Load(f); err != nil {
		s.log.Warn(ctx, "persisted model rejected, will retrain lazily",
			logger.String("path", s.cfg.ModelPath), logger.Error(err))
		return
	}
	s.log.Info(ctx, "anomaly model restored", logger.String("path", s.cfg.ModelPath))
}

// saveModel persists the trained model; an untrained model is skipped.
func (s *Service) saveModel(ctx context.Context) {
	if s.cfg.ModelPath == "" || !s.scorer.Trained() {
		return
	}
	f, err := os.Create(s.cfg.ModelPath)
	if err != nil {
		s.log.Error(ctx, "model file unwritable", logger.String("path", s.cfg.ModelPath), logger.Error(err))
		return
	}
	defer f.Close()
	if err := s.scorer.Save(f); err != nil {
		s.log.Error(ctx, "model save failed", logger.String("path", s.cfg.ModelPath), logger.Error(err))
		return
	}
	s.log.Info(ctx, "anomaly model persisted", logger.String("path", s.cfg.ModelPath))
}

// Close persists the model and releases the storage connection.
func (s *Service) Close(ctx context.Context) error {
	s.saveModel(ctx)
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
