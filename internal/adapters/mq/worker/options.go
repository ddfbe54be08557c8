package worker

import (
	"time"

	"github.com/ajitpdevops/rediguard/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent consumers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithConsumerName sets the consumer name prefix within the group.
func WithConsumerName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.consumer = name
		}
	}
}

// WithReadCount sets the per-read batch size.
func WithReadCount(n int64) Option {
	return func(p *Pool) {
		if n > 0 {
			p.readCount = n
		}
	}
}

// WithReadBlock sets how long a read blocks waiting for new entries.
func WithReadBlock(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.readBlock = d
		}
	}
}

// WithClaimIdle sets the visibility timeout before pending entries are
// reclaimed from dead consumers.
func WithClaimIdle(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.claimIdle = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Pool) {
		if log != nil {
			p.log = log
		}
	}
}
