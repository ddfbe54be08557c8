package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpdevops/rediguard/internal/domain/feature"
	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

const (
	lastLocPrefix   = "lastloc:"
	userStatePrefix = "userstate:"
)

// UserStateStore tracks per-user login context: the last seen location
// for geo-jump detection and the aggregate history that feeds the
// feature extractor's historical slots.
type UserStateStore struct {
	rdb *redis.Client
}

// NewUserStateStore builds the per-user state facade.
func NewUserStateStore(c *Client) *UserStateStore {
	return &UserStateStore{rdb: c.Redis()}
}

// LastLocation returns the previously observed location for the user,
// or "" when none has been recorded.
func (s *UserStateStore) LastLocation(ctx context.Context, userID string) (string, error) {
	loc, err := s.rdb.Get(ctx, lastLocPrefix+userID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", storeErr("userstate", "lastloc", err)
	}
	return loc, nil
}

// SetLastLocation records the most recent location for the user.
func (s *UserStateStore) SetLastLocation(ctx context.Context, userID, location string) error {
	if err := s.rdb.Set(ctx, lastLocPrefix+userID, location, 0).Err(); err != nil {
		return storeErr("userstate", "lastloc", err)
	}
	return nil
}

// Observe folds one login into the user's aggregate history.
func (s *UserStateStore) Observe(ctx context.Context, e model.LoginEvent) error {
	defer observe("userstate", "observe", time.Now())
	key := userStatePrefix + e.UserID

	lastTS, err := s.rdb.HGet(ctx, key, "last_ts").Int64()
	if err != nil && err != redis.Nil {
		return storeErr("userstate", "observe", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "count", 1)
	pipe.HSet(ctx, key, "last_ts", e.Timestamp)
	if lastTS > 0 && e.Timestamp > lastTS {
		pipe.HIncrBy(ctx, key, "interval_sum", e.Timestamp-lastTS)
	}
	pipe.SAdd(ctx, key+":ips", e.IP)
	pipe.SAdd(ctx, key+":locs", e.Location)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("userstate", "observe", err)
	}
	return nil
}

// History materializes the historical feature slots for the user. A
// user with no recorded logins yields a nil history (zero slots).
func (s *UserStateStore) History(ctx context.Context, userID string) (*feature.History, error) {
	defer observe("userstate", "history", time.Now())
	key := userStatePrefix + userID

	doc, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, storeErr("userstate", "history", err)
	}
	if len(doc) == 0 {
		return nil, nil
	}
	count, _ := strconv.ParseFloat(doc["count"], 64)
	intervalSum, _ := strconv.ParseFloat(doc["interval_sum"], 64)

	ips, err := s.rdb.SCard(ctx, key+":ips").Result()
	if err != nil {
		return nil, storeErr("userstate", "history", err)
	}
	locs, err := s.rdb.SCard(ctx, key+":locs").Result()
	if err != nil {
		return nil, storeErr("userstate", "history", err)
	}

	h := &feature.History{
		LoginFrequency:  count,
		UniqueIPs:       float64(ips),
		UniqueLocations: float64(locs),
	}
	if count > 1 {
		h.AvgIntervalSeconds = intervalSum / (count - 1)
	}
	return h, nil
}
