// Package store wraps Redis behind the pipeline's storage contracts.
//
// Each store exposes one behavior with two interchangeable strategies:
// an indexed backend built on Redis Stack module commands and a fallback
// built on plain structures with linear scans. The strategy is fixed at
// construction from a capability descriptor probed once at startup.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpdevops/rediguard/pkg/logger"
	"github.com/ajitpdevops/rediguard/pkg/metrics"
)

// Client owns the Redis connection and the probed capability descriptor.
type Client struct {
	rdb  *redis.Client
	caps Capabilities
	log  logger.Logger

	addr     string
	password string
	db       int
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithAddr sets the Redis address, e.g. "localhost:6379".
func WithAddr(addr string) Option {
	return func(c *Client) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithPassword sets the Redis password.
func WithPassword(password string) Option {
	return func(c *Client) { c.password = password }
}

// WithDB selects the Redis logical database.
func WithDB(db int) Option {
	return func(c *Client) { c.db = db }
}

// WithLogger sets a custom logger for the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New connects, verifies connectivity, and probes capabilities once.
// Degraded capabilities are logged here and never surfaced per call.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		addr: "localhost:6379",
		log:  logger.Named("store"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rdb = redis.NewClient(&redis.Options{
		Addr:     c.addr,
		Password: c.password,
		DB:       c.db,
	})
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	c.caps = probe(ctx, c.rdb)
	c.log.Info(ctx, "connected to redis",
		logger.String("addr", c.addr),
		logger.Bool("timeseries", c.caps.TimeSeries),
		logger.Bool("search", c.caps.Search),
		logger.Bool("bloom", c.caps.Bloom),
	)
	for capability, present := range map[string]bool{
		"timeseries": c.caps.TimeSeries,
		"search":     c.caps.Search,
		"bloom":      c.caps.Bloom,
	} {
		metrics.SetCapabilityIndexed(capability, present)
		if !present {
			c.log.Warn(ctx, "capability absent, using fallback strategy",
				logger.String("capability", capability))
		}
	}
	return c, nil
}

// Redis exposes the underlying connection to sibling stores.
func (c *Client) Redis() *redis.Client { return c.rdb }

// Capabilities returns the startup capability descriptor.
func (c *Client) Capabilities() Capabilities { return c.caps }

// Ping reports current connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return nil
}

// Reset clears all persisted pipeline state. Callers re-create derived
// structures (indexes, filters) afterwards.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("flush db: %w", err)
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.rdb.Close() }

// observe records a store operation latency sample.
func observe(storeName, op string, start time.Time) {
	metrics.RecordStoreOp(storeName, op, float64(time.Since(start).Microseconds())/1000.0)
}

// storeErr counts and wraps a failed store operation. Expected outcomes
// (ErrNotFound misses) are not routed through here.
func storeErr(storeName, op string, err error) error {
	metrics.RecordStoreError(storeName, op)
	return fmt.Errorf("%s %s: %w", storeName, op, err)
}
