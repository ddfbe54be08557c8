// Package worker consumes login events from the stream consumer group
// and feeds them through the analysis pipeline.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpdevops/rediguard/internal/adapters/store"
	"github.com/ajitpdevops/rediguard/internal/domain/model"
	"github.com/ajitpdevops/rediguard/pkg/logger"
)

// Default pool configuration constants.
const (
	defaultWorkerCount = 4
	defaultReadCount   = 10
	defaultReadBlock   = 2 * time.Second
	defaultClaimIdle   = 30 * time.Second
	claimInterval      = 10 * time.Second
)

// Analyzer runs the per-event pipeline for an already-appended entry.
type Analyzer interface {
	Analyze(ctx context.Context, position string, e model.LoginEvent) *model.Assessment
}

// Stream is the consumer-group surface the workers read from.
type Stream interface {
	Read(ctx context.Context, consumer string, count int64, block time.Duration) ([]store.StreamEntry, error)
	Claim(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]store.StreamEntry, error)
	Ack(ctx context.Context, position string) error
}

// Pool runs N consumers against one consumer group. Entries are acked
// only after analysis finishes, so a crash before the ack leaves the
// entry pending for redelivery.
type Pool struct {
	stream   Stream
	analyzer Analyzer

	workers   int
	consumer  string
	readCount int64
	readBlock time.Duration
	claimIdle time.Duration

	log logger.Logger

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewPool creates a worker pool with configuration options.
func NewPool(stream Stream, analyzer Analyzer, opts ...Option) *Pool {
	p := &Pool{
		stream:    stream,
		analyzer:  analyzer,
		workers:   defaultWorkerCount,
		consumer:  "processor_01",
		readCount: defaultReadCount,
		readBlock: defaultReadBlock,
		claimIdle: defaultClaimIdle,
		log:       logger.Named("worker"),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the workers and blocks until they all exit.
func (p *Pool) Run(ctx context.Context) {
	defer close(p.done)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		name := fmt.Sprintf("%s_%d", p.consumer, i)
		go func() {
			defer wg.Done()
			p.loop(ctx, name)
		}()
	}
	wg.Wait()
}

// Shutdown signals the workers and waits for them to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.shutdown) })
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// loop is one consumer: reclaim idle pending entries, then read new
// ones, analyze, ack. Cancellation is checked between events.
func (p *Pool) loop(ctx context.Context, consumer string) {
	p.log.Info(ctx, "worker started", logger.String("consumer", consumer))
	lastClaim := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		default:
		}

		if time.Since(lastClaim) >= claimInterval {
			lastClaim = time.Now()
			claimed, err := p.stream.Claim(ctx, consumer, p.claimIdle, p.readCount)
			if err != nil {
				p.log.Warn(ctx, "claim failed", logger.String("consumer", consumer), logger.Error(err))
			}
			if p.handle(ctx, consumer, claimed) {
				return
			}
		}

		entries, err := p.stream.Read(ctx, consumer, p.readCount, p.readBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn(ctx, "read failed", logger.String("consumer", consumer), logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			case <-p.shutdown:
				return
			}
			continue
		}
		if p.handle(ctx, consumer, entries) {
			return
		}
	}
}

// handle analyzes and acks a batch; reports whether the loop should stop.
func (p *Pool) handle(ctx context.Context, consumer string, entries []store.StreamEntry) (stop bool) {
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return true
		case <-p.shutdown:
			return true
		default:
		}

		if err := entry.Event.Validate(); err != nil {
			// Poison entries are acked away, not retried forever.
			p.log.Warn(ctx, "dropping malformed stream entry",
				logger.String("position", entry.Position), logger.Error(err))
			if err := p.stream.Ack(ctx, entry.Position); err != nil {
				p.log.Error(ctx, "ack failed", logger.String("position", entry.Position), logger.Error(err))
			}
			continue
		}

		p.analyzer.Analyze(ctx, entry.Position, entry.Event)
		if err := p.stream.Ack(ctx, entry.Position); err != nil {
			p.log.Error(ctx, "ack failed",
				logger.String("consumer", consumer),
				logger.String("position", entry.Position),
				logger.Error(err))
		}
	}
	return false
}
