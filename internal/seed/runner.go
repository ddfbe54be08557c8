package seed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
	"github.com/ajitpdevops/rediguard/pkg/logger"
)

// Submitter delivers one generated event to the pipeline.
type Submitter interface {
	Submit(ctx context.Context, e model.LoginEvent) error
}

// Runner drives the generator in bulk or timed-streaming mode.
// Cancellation is a context checked per event, never ambient state.
type Runner struct {
	gen         *Generator
	sub         Submitter
	log         logger.Logger
	concurrency int
}

// NewRunner builds a runner with bounded submission concurrency.
func NewRunner(gen *Generator, sub Submitter, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{
		gen:         gen,
		sub:         sub,
		log:         logger.Named("seed"),
		concurrency: concurrency,
	}
}

// Seed submits count events as fast as the concurrency bound allows.
func (r *Runner) Seed(ctx context.Context, count int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		e := r.gen.Next()
		g.Go(func() error {
			if err := r.sub.Submit(ctx, e); err != nil {
				return fmt.Errorf("submit event for %s: %w", e.UserID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.log.Info(ctx, "bulk seed finished", logger.Int("count", count))
	return ctx.Err()
}

// Stream submits one event per interval until count events have been
// sent, or indefinitely when count <= 0. Returns on cancellation.
func (r *Runner) Stream(ctx context.Context, interval time.Duration, count int) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for count <= 0 || sent < count {
		select {
		case <-ctx.Done():
			r.log.Info(ctx, "streaming stopped", logger.Int("sent", sent))
			return ctx.Err()
		case <-ticker.C:
			e := r.gen.Next()
			if err := r.sub.Submit(ctx, e); err != nil {
				r.log.Warn(ctx, "submit failed", logger.String("user_id", e.UserID), logger.Error(err))
				continue
			}
			sent++
		}
	}
	r.log.Info(ctx, "streaming finished", logger.Int("sent", sent))
	return nil
}
