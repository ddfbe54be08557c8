package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	bloomKey = "bad_ips:bloom"
	setKey   = "bad_ips:set"
)

// ReputationStore answers membership questions about known-bad IPs.
// Lookups may yield false positives (bloom backend) but never false
// negatives for added members.
type ReputationStore interface {
	// Add records the IP and reports whether it was newly added.
	Add(ctx context.Context, ip string) (bool, error)
	Contains(ctx context.Context, ip string) (bool, error)
	Ensure(ctx context.Context) error
}

// ReputationConfig tunes the bloom backend. Ignored by the fallback.
type ReputationConfig struct {
	ErrorRate float64
	Capacity  int64
}

// NewReputationStore selects the backend from the probed capabilities.
func NewReputationStore(c *Client, cfg ReputationConfig) ReputationStore {
	if cfg.ErrorRate <= 0 || cfg.ErrorRate >= 1 {
		cfg.ErrorRate = 0.01
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	if c.Capabilities().Bloom {
		return &bloomReputation{rdb: c.Redis(), cfg: cfg}
	}
	return &setReputation{rdb: c.Redis()}
}

// bloomReputation stores IPs in a bloom filter via BF.* commands.
type bloomReputation struct {
	rdb *redis.Client
	cfg ReputationConfig
}

// Ensure creates the filter if absent. An existing filter is kept as is.
func (b *bloomReputation) Ensure(ctx context.Context) error {
	err := b.rdb.Do(ctx, "BF.RESERVE", bloomKey, b.cfg.ErrorRate, b.cfg.Capacity).Err()
	if err != nil && !isItemExists(err) {
		return storeErr("reputation", "ensure", err)
	}
	return nil
}

func (b *bloomReputation) Add(ctx context.Context, ip string) (bool, error) {
	defer observe("reputation", "add", time.Now())
	added, err := b.rdb.Do(ctx, "BF.ADD", bloomKey, ip).Bool()
	if err != nil {
		return false, storeErr("reputation", "add", err)
	}
	return added, nil
}

func (b *bloomReputation) Contains(ctx context.Context, ip string) (bool, error) {
	defer observe("reputation", "contains", time.Now())
	hit, err := b.rdb.Do(ctx, "BF.EXISTS", bloomKey, ip).Bool()
	if err != nil {
		return false, storeErr("reputation", "contains", err)
	}
	return hit, nil
}

// setReputation is the exact-membership fallback on a plain set.
type setReputation struct {
	rdb *redis.Client
}

func (s *setReputation) Ensure(context.Context) error { return nil }

func (s *setReputation) Add(ctx context.Context, ip string) (bool, error) {
	defer observe("reputation", "add", time.Now())
	n, err := s.rdb.SAdd(ctx, setKey, ip).Result()
	if err != nil {
		return false, storeErr("reputation", "add", err)
	}
	return n == 1, nil
}

func (s *setReputation) Contains(ctx context.Context, ip string) (bool, error) {
	defer observe("reputation", "contains", time.Now())
	hit, err := s.rdb.SIsMember(ctx, setKey, ip).Result()
	if err != nil {
		return false, storeErr("reputation", "contains", err)
	}
	return hit, nil
}

func isItemExists(err error) bool {
	if err == nil {
		return false
	}
	return containsFold(err.Error(), "item exists")
}
