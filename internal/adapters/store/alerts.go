package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

const (
	alertPrefix   = "alert:"
	alertsByTime  = "alerts_by_time"
	alertsIdxName = "alerts_idx"
)

// AlertFilter narrows an alert search. Nil/zero members match anything.
type AlertFilter struct {
	MinScore         *float64
	MaxScore         *float64
	Start            *int64
	End              *int64
	UserID           string
	IP               string
	LocationContains string
	Limit            int
}

// AlertStore persists security alerts and serves filtered queries,
// always newest first.
type AlertStore interface {
	Put(ctx context.Context, alert *model.SecurityAlert) error
	Get(ctx context.Context, id string) (*model.SecurityAlert, error)
	Search(ctx context.Context, f AlertFilter) ([]*model.SecurityAlert, error)
	Ensure(ctx context.Context) error
}

// NewAlertStore selects the backend from the probed capabilities.
func NewAlertStore(c *Client, maxLimit int) AlertStore {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if c.Capabilities().Search {
		return &indexedAlerts{rdb: c.Redis(), maxLimit: maxLimit}
	}
	return &scanAlerts{rdb: c.Redis(), maxLimit: maxLimit}
}

func alertKey(id string) string { return alertPrefix + id }

// putAlert writes the alert hash plus the time-ordered member both
// backends use for recency.
func putAlert(ctx context.Context, rdb *redis.Client, alert *model.SecurityAlert) error {
	details, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	malicious := 0
	if alert.IsMaliciousIP {
		malicious = 1
	}
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, alertKey(alert.ID), map[string]interface{}{
		"id":           alert.ID,
		"user_id":      alert.UserID,
		"ip":           alert.IP,
		"location":     alert.Location,
		"timestamp":    alert.Timestamp,
		"score":        alert.Score,
		"malicious_ip": malicious,
		"geo_jump_km":  alert.GeoJumpKM,
		"embedding":    alert.EmbeddingKey,
		"details":      string(details),
	})
	pipe.ZAdd(ctx, alertsByTime, redis.Z{Score: float64(alert.Timestamp), Member: alert.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("alerts", "put", err)
	}
	return nil
}

func alertFromDoc(doc map[string]string) *model.SecurityAlert {
	a := &model.SecurityAlert{
		ID:           doc["id"],
		UserID:       doc["user_id"],
		IP:           doc["ip"],
		Location:     doc["location"],
		EmbeddingKey: doc["embedding"],
	}
	a.Timestamp, _ = strconv.ParseInt(doc["timestamp"], 10, 64)
	a.Score, _ = strconv.ParseFloat(doc["score"], 64)
	a.GeoJumpKM, _ = strconv.ParseFloat(doc["geo_jump_km"], 64)
	a.IsMaliciousIP = doc["malicious_ip"] == "1"
	if raw := doc["details"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &a.Details)
	}
	return a
}

func getAlert(ctx context.Context, rdb *redis.Client, id string) (*model.SecurityAlert, error) {
	doc, err := rdb.HGetAll(ctx, alertKey(id)).Result()
	if err != nil {
		return nil, storeErr("alerts", "get", err)
	}
	if len(doc) == 0 {
		return nil, ErrNotFound
	}
	return alertFromDoc(doc), nil
}

// matches applies the filter members an index query cannot express
// exactly, so both backends return identical result sets.
func (f AlertFilter) matches(a *model.SecurityAlert) bool {
	if f.MinScore != nil && a.Score < *f.MinScore {
		return false
	}
	if f.MaxScore != nil && a.Score > *f.MaxScore {
		return false
	}
	if f.Start != nil && a.Timestamp < *f.Start {
		return false
	}
	if f.End != nil && a.Timestamp > *f.End {
		return false
	}
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.IP != "" && a.IP != f.IP {
		return false
	}
	if f.LocationContains != "" &&
		!strings.Contains(strings.ToLower(a.Location), strings.ToLower(f.LocationContains)) {
		return false
	}
	return true
}

// indexedAlerts narrows candidates with FT numeric/tag predicates and
// finishes filtering in process. Substring location match is not a thing
// a token index answers, so that predicate always runs here.
type indexedAlerts struct {
	rdb      *redis.Client
	maxLimit int
}

func (s *indexedAlerts) Ensure(ctx context.Context) error {
	err := s.rdb.Do(ctx, "FT.CREATE", alertsIdxName,
		"ON", "HASH", "PREFIX", "1", alertPrefix,
		"SCHEMA",
		"user_id", "TAG",
		"ip", "TAG",
		"location", "TEXT",
		"timestamp", "NUMERIC", "SORTABLE",
		"score", "NUMERIC", "SORTABLE",
	).Err()
	if err != nil && !containsFold(err.Error(), "index already exists") {
		return fmt.Errorf("create alert index: %w", err)
	}
	return nil
}

func (s *indexedAlerts) Put(ctx context.Context, alert *model.SecurityAlert) error {
	defer observe("alerts", "put", time.Now())
	return putAlert(ctx, s.rdb, alert)
}

func (s *indexedAlerts) Get(ctx context.Context, id string) (*model.SecurityAlert, error) {
	defer observe("alerts", "get", time.Now())
	return getAlert(ctx, s.rdb, id)
}

// searchPageSize is how many candidates each index round trip fetches.
const searchPageSize = 100

func (s *indexedAlerts) Search(ctx context.Context, f AlertFilter) ([]*model.SecurityAlert, error) {
	defer observe("alerts", "search", time.Now())
	limit := clampLimit(f.Limit, s.maxLimit)

	fetch := func(offset int) ([]*model.SecurityAlert, error) {
		raw, err := s.rdb.Do(ctx, "FT.SEARCH", alertsIdxName, buildAlertQuery(f),
			"SORTBY", "timestamp", "DESC",
			"LIMIT", offset, searchPageSize,
			"DIALECT", "2",
		).Slice()
		if err != nil {
			return nil, storeErr("alerts", "search", err)
		}
		return parseAlertPage(raw), nil
	}
	return collectAlerts(f, limit, searchPageSize, fetch)
}

// parseAlertPage walks one RESP2 FT.SEARCH reply:
// [total, key1, [field, value, ...], key2, [...], ...].
func parseAlertPage(raw []interface{}) []*model.SecurityAlert {
	var out []*model.SecurityAlert
	for i := 1; i+1 < len(raw); i += 2 {
		fields, ok := raw[i+1].([]interface{})
		if !ok {
			continue
		}
		doc := make(map[string]string, len(fields)/2)
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value, _ := fields[j+1].(string)
			doc[name] = value
		}
		out = append(out, alertFromDoc(doc))
	}
	return out
}

// collectAlerts pages through index candidates, applying the in-process
// predicates, until limit matches are collected or the index runs out.
// The in-process filter can reject arbitrarily many candidates per page,
// so stopping after the first page would diverge from the full scan.
func collectAlerts(f AlertFilter, limit, pageSize int, fetch func(offset int) ([]*model.SecurityAlert, error)) ([]*model.SecurityAlert, error) {
	var out []*model.SecurityAlert
	for offset := 0; ; offset += pageSize {
		page, err := fetch(offset)
		if err != nil {
			return nil, err
		}
		for _, a := range page {
			if !f.matches(a) {
				continue
			}
			out = append(out, a)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

// buildAlertQuery expresses the numeric and tag predicates; the rest is
// left to the in-process filter.
func buildAlertQuery(f AlertFilter) string {
	var parts []string
	if f.UserID != "" {
		parts = append(parts, fmt.Sprintf("@user_id:{%s}", escapeTag(f.UserID)))
	}
	if f.IP != "" {
		parts = append(parts, fmt.Sprintf("@ip:{%s}", escapeTag(f.IP)))
	}
	if f.MinScore != nil || f.MaxScore != nil {
		lo, hi := "-inf", "+inf"
		if f.MinScore != nil {
			lo = strconv.FormatFloat(*f.MinScore, 'g', -1, 64)
		}
		if f.MaxScore != nil {
			hi = strconv.FormatFloat(*f.MaxScore, 'g', -1, 64)
		}
		parts = append(parts, fmt.Sprintf("@score:[%s %s]", lo, hi))
	}
	if f.Start != nil || f.End != nil {
		lo, hi := "-inf", "+inf"
		if f.Start != nil {
			lo = strconv.FormatInt(*f.Start, 10)
		}
		if f.End != nil {
			hi = strconv.FormatInt(*f.End, 10)
		}
		parts = append(parts, fmt.Sprintf("@timestamp:[%s %s]", lo, hi))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// escapeTag escapes the characters the tag query syntax treats specially.
func escapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '-', ':', '@', '{', '}', '|', ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scanAlerts walks the time-ordered set newest first and filters in
// process.
type scanAlerts struct {
	rdb      *redis.Client
	maxLimit int
}

func (s *scanAlerts) Ensure(context.Context) error { return nil }

func (s *scanAlerts) Put(ctx context.Context, alert *model.SecurityAlert) error {
	defer observe("alerts", "put", time.Now())
	return putAlert(ctx, s.rdb, alert)
}

func (s *scanAlerts) Get(ctx context.Context, id string) (*model.SecurityAlert, error) {
	defer observe("alerts", "get", time.Now())
	return getAlert(ctx, s.rdb, id)
}

func (s *scanAlerts) Search(ctx context.Context, f AlertFilter) ([]*model.SecurityAlert, error) {
	defer observe("alerts", "search", time.Now())
	limit := clampLimit(f.Limit, s.maxLimit)

	ids, err := s.rdb.ZRevRange(ctx, alertsByTime, 0, -1).Result()
	if err != nil {
		return nil, storeErr("alerts", "search", err)
	}
	var out []*model.SecurityAlert
	for _, id := range ids {
		a, err := getAlert(ctx, s.rdb, id)
		if err != nil {
			continue
		}
		if !f.matches(a) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func clampLimit(limit, maxLimit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}
