package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RG_CONFIG is set
//  3. env (prefix RG_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("RG_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: RG_ADDR, RG_REDIS_ADDR, RG_WORKER_COUNT, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("RG_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "rg_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr must not be empty", ErrInvalidConfig)
	case c.StreamName == "":
		return fmt.Errorf("%w: stream_name must not be empty", ErrInvalidConfig)
	case c.VectorDimension <= 0:
		return fmt.Errorf("%w: vector_dimension must be positive", ErrInvalidConfig)
	case c.AnomalyThreshold < 0 || c.AnomalyThreshold > 1:
		return fmt.Errorf("%w: anomaly_threshold must be in [0,1]", ErrInvalidConfig)
	case c.RetentionHours <= 0:
		return fmt.Errorf("%w: retention_hours must be positive", ErrInvalidConfig)
	case c.BloomErrorRate <= 0 || c.BloomErrorRate >= 1:
		return fmt.Errorf("%w: bloom_error_rate must be in (0,1)", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	return nil
}
