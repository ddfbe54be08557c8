// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file/env.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Redis connection.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// StreamName is the login event stream key.
	StreamName string `koanf:"stream_name"`

	// StreamMaxLen caps the stream length (approximate trimming).
	StreamMaxLen int64 `koanf:"stream_maxlen"`

	// ConsumerGroup and ConsumerName identify this process on the stream.
	ConsumerGroup string `koanf:"consumer_group"`
	ConsumerName  string `koanf:"consumer_name"`

	// WorkerCount sets the number of stream consumer workers.
	WorkerCount int `koanf:"worker_count"`

	// StreamClaimMinIdleMS is the visibility timeout before a pending
	// entry becomes eligible for redelivery to another consumer.
	StreamClaimMinIdleMS int `koanf:"stream_claim_min_idle_ms"`

	// VectorDimension is the behavior embedding dimension.
	VectorDimension int `koanf:"vector_dimension"`

	// AnomalyThreshold marks an event anomalous when its score exceeds it.
	AnomalyThreshold float64 `koanf:"anomaly_threshold"`

	// RetentionHours bounds the per-user anomaly score timeline.
	RetentionHours int `koanf:"retention_hours"`

	// Bloom filter sizing for the IP reputation set.
	BloomErrorRate float64 `koanf:"bloom_error_rate"`
	BloomCapacity  int64   `koanf:"bloom_capacity"`

	// GeoJumpThresholdKM triggers an alert on large location jumps.
	GeoJumpThresholdKM float64 `koanf:"geo_jump_threshold_km"`

	// SimilarLimit is the default k for similarity queries.
	SimilarLimit int `koanf:"similar_limit"`

	// MaxSearchLimit caps alert search result counts.
	MaxSearchLimit int `koanf:"max_search_limit"`

	// ModelPath persists the trained anomaly model between runs.
	// Empty disables persistence.
	ModelPath string `koanf:"model_path"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":8000",
		RedisAddr:            "localhost:6379",
		RedisDB:              0,
		StreamName:           "logins:stream",
		StreamMaxLen:         10_000,
		ConsumerGroup:        "security_processors",
		ConsumerName:         "processor_01",
		WorkerCount:          runtime.NumCPU(),
		StreamClaimMinIdleMS: 30_000,
		VectorDimension:      128,
		AnomalyThreshold:     0.8,
		RetentionHours:       24,
		BloomErrorRate:       0.01,
		BloomCapacity:        10_000,
		GeoJumpThresholdKM:   1000,
		SimilarLimit:         5,
		MaxSearchLimit:       100,
		ModelPath:            "",
	}
}
