package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
	"github.com/ajitpdevops/rediguard/pkg/metrics"
)

// StreamEntry is one delivered login event with its stream position.
type StreamEntry struct {
	Position string
	Event    model.LoginEvent
}

// EventStream appends login events and delivers them to a consumer
// group with at-least-once semantics: every entry stays pending until
// acknowledged, and idle pending entries can be reclaimed.
type EventStream struct {
	rdb    *redis.Client
	stream string
	group  string
	maxLen int64
}

// StreamConfig fixes the stream identity and bounds.
type StreamConfig struct {
	Stream string
	Group  string
	MaxLen int64
}

// NewEventStream builds the stream facade; call EnsureGroup before
// reading.
func NewEventStream(c *Client, cfg StreamConfig) *EventStream {
	if cfg.Stream == "" {
		cfg.Stream = "logins:stream"
	}
	if cfg.Group == "" {
		cfg.Group = "security_processors"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 10000
	}
	return &EventStream{
		rdb:    c.Redis(),
		stream: cfg.Stream,
		group:  cfg.Group,
		maxLen: cfg.MaxLen,
	}
}

// EnsureGroup creates the consumer group (and the stream with it) if
// either is missing.
func (s *EventStream) EnsureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !containsFold(err.Error(), "busygroup") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Append adds one event to the stream and returns its position. The
// stream is trimmed approximately to its configured bound.
func (s *EventStream) Append(ctx context.Context, e model.LoginEvent) (string, error) {
	defer observe("stream", "append", time.Now())
	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"user_id":   e.UserID,
			"ip":        e.IP,
			"location":  e.Location,
			"timestamp": e.Timestamp,
		},
	}).Result()
	if err != nil {
		return "", storeErr("stream", "append", fmt.Errorf("%w: %v", ErrConnectivity, err))
	}
	metrics.RecordStreamAppend()
	return id, nil
}

// Read blocks up to the given duration for new entries addressed to this
// consumer. A block timeout yields an empty batch, not an error.
func (s *EventStream) Read(ctx context.Context, consumer string, count int64, block time.Duration) ([]StreamEntry, error) {
	defer observe("stream", "read", time.Now())
	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{s.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("stream", "read", err)
	}
	var out []StreamEntry
	for _, stream := range res {
		for _, msg := range stream.Messages {
			out = append(out, StreamEntry{
				Position: msg.ID,
				Event:    eventFromValues(msg.Values),
			})
			metrics.RecordStreamDelivery()
		}
	}
	return out, nil
}

// Claim transfers pending entries idle for at least minIdle to this
// consumer, so work abandoned by a dead consumer is redelivered.
func (s *EventStream) Claim(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]StreamEntry, error) {
	defer observe("stream", "claim", time.Now())
	msgs, _, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		return nil, storeErr("stream", "claim", err)
	}
	var out []StreamEntry
	for _, msg := range msgs {
		out = append(out, StreamEntry{
			Position: msg.ID,
			Event:    eventFromValues(msg.Values),
		})
		metrics.RecordStreamReclaim()
	}
	return out, nil
}

// Ack marks an entry as done; it will not be redelivered.
func (s *EventStream) Ack(ctx context.Context, position string) error {
	defer observe("stream", "ack", time.Now())
	if err := s.rdb.XAck(ctx, s.stream, s.group, position).Err(); err != nil {
		return storeErr("stream", "ack", err)
	}
	metrics.RecordStreamAck()
	return nil
}

// Len returns the current stream length.
func (s *EventStream) Len(ctx context.Context) (int64, error) {
	n, err := s.rdb.XLen(ctx, s.stream).Result()
	if err != nil {
		return 0, storeErr("stream", "len", err)
	}
	return n, nil
}

// Pending returns the number of delivered-but-unacknowledged entries.
func (s *EventStream) Pending(ctx context.Context) (int64, error) {
	p, err := s.rdb.XPending(ctx, s.stream, s.group).Result()
	if err != nil {
		if containsFold(err.Error(), "nogroup") {
			return 0, nil
		}
		return 0, storeErr("stream", "pending", err)
	}
	return p.Count, nil
}

func eventFromValues(values map[string]interface{}) model.LoginEvent {
	e := model.LoginEvent{
		UserID:   stringValue(values["user_id"]),
		IP:       stringValue(values["ip"]),
		Location: stringValue(values["location"]),
	}
	if raw := stringValue(values["timestamp"]); raw != "" {
		e.Timestamp, _ = strconv.ParseInt(raw, 10, 64)
	}
	return e
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
