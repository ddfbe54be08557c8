package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sample is one anomaly score observation for a user.
type Sample struct {
	Timestamp int64   `json:"timestamp"`
	Score     float64 `json:"score"`
}

// TimeSeriesStore keeps per-user anomaly score series with bounded
// retention. Timestamps are unix seconds; samples older than the
// retention window are not returned and eventually dropped.
type TimeSeriesStore interface {
	Append(ctx context.Context, userID string, ts int64, score float64) error
	Range(ctx context.Context, userID string, start, end int64) ([]Sample, error)
}

// NewTimeSeriesStore selects the backend from the probed capabilities.
func NewTimeSeriesStore(c *Client, retention time.Duration) TimeSeriesStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if c.Capabilities().TimeSeries {
		return &nativeTimeSeries{rdb: c.Redis(), retention: retention}
	}
	return &zsetTimeSeries{rdb: c.Redis(), retention: retention}
}

func tsKey(userID string) string { return "anomaly:ts:" + userID }

// nativeTimeSeries uses TS.* commands with server-side retention.
type nativeTimeSeries struct {
	rdb       *redis.Client
	retention time.Duration
}

func (n *nativeTimeSeries) ensure(ctx context.Context, userID string) error {
	err := n.rdb.Do(ctx, "TS.CREATE", tsKey(userID),
		"RETENTION", n.retention.Milliseconds(),
		"DUPLICATE_POLICY", "LAST",
	).Err()
	if err != nil && !containsFold(err.Error(), "already exists") {
		return err
	}
	return nil
}

func (n *nativeTimeSeries) Append(ctx context.Context, userID string, ts int64, score float64) error {
	defer observe("timeseries", "append", time.Now())
	if err := n.ensure(ctx, userID); err != nil {
		return storeErr("timeseries", "append", err)
	}
	// Native series keys samples in milliseconds.
	if err := n.rdb.Do(ctx, "TS.ADD", tsKey(userID), ts*1000, score).Err(); err != nil {
		return storeErr("timeseries", "append", err)
	}
	return nil
}

func (n *nativeTimeSeries) Range(ctx context.Context, userID string, start, end int64) ([]Sample, error) {
	defer observe("timeseries", "range", time.Now())
	start, end = clampWindow(start, end, n.retention)

	raw, err := n.rdb.Do(ctx, "TS.RANGE", tsKey(userID), start*1000, end*1000).Slice()
	if err != nil {
		if containsFold(err.Error(), "does not exist") {
			return nil, nil
		}
		return nil, storeErr("timeseries", "range", err)
	}
	samples := make([]Sample, 0, len(raw))
	for _, item := range raw {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}
		ms, ok := toInt64(pair[0])
		if !ok {
			continue
		}
		score, ok := toFloat64(pair[1])
		if !ok {
			continue
		}
		samples = append(samples, Sample{Timestamp: ms / 1000, Score: score})
	}
	return samples, nil
}

// zsetTimeSeries is the fallback on a sorted set scored by timestamp.
// Members encode "<ts>:<score>"; a write to an occupied timestamp
// replaces the previous sample, matching the native LAST duplicate
// policy. Retention is pruned on both write and read.
type zsetTimeSeries struct {
	rdb       *redis.Client
	retention time.Duration
}

func (z *zsetTimeSeries) Append(ctx context.Context, userID string, ts int64, score float64) error {
	defer observe("timeseries", "append", time.Now())
	key := tsKey(userID)
	tsStr := strconv.FormatInt(ts, 10)
	member := fmt.Sprintf("%d:%g", ts, score)
	pipe := z.rdb.TxPipeline()
	// Drop any sample already at this timestamp so the new score wins.
	pipe.ZRemRangeByScore(ctx, key, tsStr, tsStr)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ts), Member: member})
	cutoff := time.Now().Add(-z.retention).Unix()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff-1, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("timeseries", "append", err)
	}
	return nil
}

func (z *zsetTimeSeries) Range(ctx context.Context, userID string, start, end int64) ([]Sample, error) {
	defer observe("timeseries", "range", time.Now())
	start, end = clampWindow(start, end, z.retention)

	members, err := z.rdb.ZRangeByScore(ctx, tsKey(userID), &redis.ZRangeBy{
		Min: strconv.FormatInt(start, 10),
		Max: strconv.FormatInt(end, 10),
	}).Result()
	if err != nil {
		return nil, storeErr("timeseries", "range", err)
	}
	samples := make([]Sample, 0, len(members))
	for _, m := range members {
		ts, score, ok := decodeSample(m)
		if !ok {
			continue
		}
		samples = append(samples, Sample{Timestamp: ts, Score: score})
	}
	return samples, nil
}

func decodeSample(member string) (int64, float64, bool) {
	i := strings.IndexByte(member, ':')
	if i < 0 {
		return 0, 0, false
	}
	ts, err := strconv.ParseInt(member[:i], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	score, err := strconv.ParseFloat(member[i+1:], 64)
	if err != nil {
		return 0, 0, false
	}
	return ts, score, true
}

// clampWindow pulls the query start up to the retention boundary so both
// backends answer identically regardless of when pruning last ran.
func clampWindow(start, end int64, retention time.Duration) (int64, int64) {
	cutoff := time.Now().Add(-retention).Unix()
	if start < cutoff {
		start = cutoff
	}
	if end <= 0 {
		end = time.Now().Unix()
	}
	return start, end
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
